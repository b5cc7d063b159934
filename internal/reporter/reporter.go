package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	"github.com/onsi/ginkgo/v2/types"
	"github.com/openshift-kni/k8sreporter"
	"github.com/rh-ecosystem-edge/tempjobs/internal/inittools"
	"k8s.io/apimachinery/pkg/runtime"
)

func newReporter(
	reportPath string,
	namespacesToDump map[string]string,
	apiScheme func(scheme *runtime.Scheme) error,
	cRDs []k8sreporter.CRData) (*k8sreporter.KubernetesReporter, error) {
	nsToDumpFilter := func(ns string) bool {
		_, found := namespacesToDump[ns]

		return found
	}

	if err := os.MkdirAll(reportPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir %s: %w", reportPath, err)
	}

	res, err := k8sreporter.New(inittools.GeneralConfig.Kubeconfig, apiScheme, nsToDumpFilter, reportPath, cRDs...)
	if err != nil {
		return nil, err
	}

	return res, nil
}

// ReportIfFailed dumps requested cluster CRs and the content of the job namespaces when the spec failed.
func ReportIfFailed(
	report types.SpecReport,
	testSuite string,
	nSpaces map[string]string,
	cRDs []k8sreporter.CRData,
	apiScheme func(scheme *runtime.Scheme) error) {
	if !report.Failed() {
		return
	}

	if inittools.APIClient == nil || inittools.GeneralConfig.ReportsDirAbsPath == "" {
		return
	}

	dumpDir := inittools.GeneralConfig.GetReportPath(
		strings.TrimSuffix(filepath.Base(testSuite), filepath.Ext(testSuite)))

	reporter, err := newReporter(dumpDir, nSpaces, apiScheme, cRDs)
	if err != nil {
		glog.Errorf("Failed to create log reporter due to %s", err)

		return
	}

	tcReportFolderName := strings.ReplaceAll(report.FullText(), " ", "_")
	reporter.Dump(report.RunTime, tcReportFolderName)
}
