package commands

import (
	"encoding/json"
	"fmt"

	"github.com/opnforge/opnforge/pkg/toolsurface"
)

// printEnvelope renders a Tool Surface envelope either as raw JSON
// (--json) or, on failure, as a plain error line. Success-path human
// summaries are left to each command, which knows the shape of its Data.
func printEnvelope(env toolsurface.Envelope) error {
	if jsonOut {
		raw, err := json.MarshalIndent(env, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	if !env.OK {
		return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
	}
	return nil
}

func printJSON(v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
