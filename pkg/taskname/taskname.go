package taskname

const (
	// Click tasks
	ClickLog = "click:log"
)
