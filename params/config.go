// Package params holds the schedule limits and fee model constants the
// benchmark harness threads through every operation.
package params

// Config bundles the runtime capabilities a scenario needs: module limits
// and fee constants. It is passed by reference into every harness operation
// instead of living in package globals, so that a run against a modified
// runtime only has to construct a different Config.
type Config struct {
	Schedule *Schedule
	FeeModel *FeeModel
}

// DefaultConfig returns the configuration of the reference runtime.
func DefaultConfig() *Config {
	return &Config{
		Schedule: DefaultSchedule(),
		FeeModel: DefaultFeeModel(),
	}
}

// Clone returns a deep copy. Scenarios that mutate their configuration, like
// a schedule update, run on a clone so state cannot leak between samples.
func (c *Config) Clone() *Config {
	sched := *c.Schedule
	model := *c.FeeModel
	return &Config{Schedule: &sched, FeeModel: &model}
}
