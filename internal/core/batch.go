package core

// BatchResult summarizes a process-everything run.
type BatchResult struct {
	Notes   int `json:"notes"`   // in-scope notes processed
	Renamed int `json:"renamed"` // attachments renamed in total
}

// ProcessAll runs the engine sequentially over every in-scope note.
// Sequential execution bounds resource usage and keeps rename ordering
// deterministic (note enumeration order).
func ProcessAll(engine *Engine, cfg *Config, host Host) (*BatchResult, error) {
	notes, err := host.Notes()
	if err != nil {
		return nil, err
	}
	res := &BatchResult{}
	for _, note := range notes {
		if !InScope(cfg, note) {
			continue
		}
		res.Notes++
		res.Renamed += engine.ProcessNote(note, "")
	}
	return res, nil
}
