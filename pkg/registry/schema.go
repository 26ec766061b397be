// pkg/registry/schema.go
package registry

// ActivityRegistry lists the service tasks a BPMN model can call.
type ActivityRegistry struct {
	Version     string     `json:"version"`
	LastUpdated string     `json:"lastUpdated"`
	Activities  []Activity `json:"activities"`
}

// Activity documents one task type: its job variables in and out and the
// BPMN error codes it may throw.
type Activity struct {
	ID           string   `json:"id"`
	DisplayName  string   `json:"displayName"`
	Description  string   `json:"description"`
	Category     string   `json:"category"`
	TaskType     string   `json:"taskType"`
	Inputs       []string `json:"inputs"`
	Outputs      []string `json:"outputs"`
	ErrorCodes   []string `json:"errorCodes"`
	Timeout      string   `json:"timeout"`
	Retries      int      `json:"retries"`
	Tags         []string `json:"tags,omitempty"`
}
