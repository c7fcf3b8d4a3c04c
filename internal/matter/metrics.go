package matter

// Metrics receives engine outcomes. Operation is one of "satisfies",
// "apply", "synthesize", "add_child", "remove_child"; outcome is a short
// status such as "true", "false", "success", "merged", "fail". Live
// instance counts are kept per world.
type Metrics interface {
	Observe(operation, outcome string)
	SetLiveInstances(world string, n int)
	ForgetWorld(world string)
}

type noopMetrics struct{}

func (noopMetrics) Observe(string, string)       {}
func (noopMetrics) SetLiveInstances(string, int) {}
func (noopMetrics) ForgetWorld(string)           {}
