package params

const (
	// Label represents temporary jobs test cases selection.
	Label = "tempjobs"

	// LogLevel custom loglevel of temporary job related functions.
	LogLevel    = 90
	Log10Level  = 10
	Log50Level  = 50
	Log100Level = 100
)

// Labels represents the range of labels that can be used for test cases selection.
var Labels = []string{Label}
