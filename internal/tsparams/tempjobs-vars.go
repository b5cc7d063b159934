package tsparams

import (
	"github.com/openshift-kni/k8sreporter"
	"github.com/rh-ecosystem-edge/tempjobs/internal/inittools"
	"github.com/rh-ecosystem-edge/tempjobs/internal/params"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
)

const (
	// LabelSuite represents the live temporary jobs suite label.
	LabelSuite = "live"
)

var (
	// Labels represents the range of labels that can be used for test cases selection.
	Labels = append(params.Labels, LabelSuite)

	// ReporterNamespacesToDump tells to the reporter from where to collect logs.
	ReporterNamespacesToDump = map[string]string{
		inittools.GeneralConfig.Namespace: "tempjobs",
	}

	// ReporterCRDsToDump tells to the reporter what CRs to dump.
	ReporterCRDsToDump = []k8sreporter.CRData{
		{Cr: &appsv1.DeploymentList{}},
		{Cr: &corev1.ServiceList{}},
	}
)
