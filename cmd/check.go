package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/transmission-sim/transmission-sim/sim/params"
	"github.com/transmission-sim/transmission-sim/sim/scenario"
)

// checkFile validates a scenario, or a defaults document as printed by the
// params command, listing every parameter violation on w. A file that is
// neither reports the scenario parse error.
func checkFile(w io.Writer, path string) error {
	sc, err := scenario.LoadScenario(path)
	if err == nil {
		_, err = sc.Snapshot()
		return report(w, path, err)
	}
	d, derr := loadDefaults(path)
	if derr != nil {
		return err
	}
	logrus.Debugf("%s is not a scenario; checking it as a defaults document", path)
	_, err = d.Snapshot()
	return report(w, path, err)
}

func report(w io.Writer, path string, err error) error {
	if err != nil {
		var ve *params.ValidationError
		if errors.As(err, &ve) {
			for _, v := range ve.Violations {
				fmt.Fprintln(w, v.String())
			}
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "%s: ok\n", path)
	return nil
}
