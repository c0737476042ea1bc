package builtin

import "github.com/hupe1980/agentflow/tool"

// Options configures the default tool set.
type Options struct {
	// SearchRoot confines file_search (defaults to ".").
	SearchRoot string
}

// RegisterDefaults registers calculator and file_search on d.
func RegisterDefaults(d *tool.Dispatcher, optFns ...func(o *Options)) error {
	opts := Options{SearchRoot: "."}
	for _, fn := range optFns {
		fn(&opts)
	}
	for _, t := range []tool.Tool{NewCalculator(), NewFileSearch(opts.SearchRoot)} {
		if err := d.Register(t); err != nil {
			return err
		}
	}
	return nil
}
