package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/rh-ecosystem-edge/tempjobs/internal/config"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/clients"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/kubegateway"
	"github.com/rh-ecosystem-edge/tempjobs/pkg/tempjobs"
	"github.com/spf13/cobra"
)

var (
	namespace  string
	kubeconfig string
	prefix     string
	jsonOutput bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}

	glog.Flush()
}

func newRootCmd() *cobra.Command {
	generalConfig := config.NewConfig()
	if generalConfig == nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration")
		os.Exit(1)
	}

	cmd := &cobra.Command{
		Use:          "tempjobs",
		Short:        "Inspect and clean up temporary test jobs",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", generalConfig.Namespace, "namespace the jobs run in")
	cmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", generalConfig.Kubeconfig, "path to the kubeconfig file")
	cmd.PersistentFlags().StringVar(&prefix, "prefix", generalConfig.JobPrefix, "job name prefix")
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(newListCmd(), newReapCmd())

	return cmd
}

var newGateway = kubeGateway

func kubeGateway() (tempjobs.Gateway, error) {
	settings := clients.New(kubeconfig)
	if settings == nil {
		return nil, fmt.Errorf("can not load kubernetes client, check --kubeconfig or the KUBECONFIG env var")
	}

	return kubegateway.New(settings.K8sClient, namespace), nil
}
