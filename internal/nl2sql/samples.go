package nl2sql

// SamplePrompts are offered as starting questions in the dashboard and CLI.
var SamplePrompts = []string{
	"Show fuel rate for vehicles with low capacity",
	"Analyze route risk scores",
	"Count operations by order status",
	"Average disruption score by risk class",
	"ETA variation by traffic level",
	"Warehouse delivery rates comparison",
	"Driver fatigue vs delay probability",
}
