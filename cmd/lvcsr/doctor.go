package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/julius-speech/julius-sub004/internal/engine"
)

// doctorCheck is one pass/fail line of doctor's report.
type doctorCheck struct {
	name string
	err  error
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that the configured model paths exist and load cleanly",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd.OutOrStdout())
		},
	}
}

func runDoctor(out interface{ Write([]byte) (int, error) }) error {
	checks := []doctorCheck{
		{"acoustic model present", checkFile(activeCfg.Paths.AcousticModel)},
		{"hmm list present", checkFile(activeCfg.Paths.HMMList)},
		{"dictionary present", checkFile(activeCfg.Paths.Dictionary)},
	}
	if activeCfg.Paths.GrammarFile != "" {
		checks = append(checks, doctorCheck{"grammar file present", checkFile(activeCfg.Paths.GrammarFile)})
	} else {
		checks = append(checks, doctorCheck{"language model present", checkFile(activeCfg.Paths.LanguageModel)})
	}

	failed := false
	for _, c := range checks {
		writeCheck(out, c)
		if c.err != nil {
			failed = true
		}
	}

	if !failed {
		eng := engine.New(nil)
		err := eng.Load(activeCfg)
		writeCheck(out, doctorCheck{"engine loads configured models", err})
		if err != nil {
			failed = true
		}
	}

	if failed {
		return fmt.Errorf("doctor: one or more checks failed")
	}
	return nil
}

func checkFile(path string) error {
	if path == "" {
		return fmt.Errorf("path not configured")
	}
	_, err := os.Stat(path)
	return err
}

func writeCheck(out interface{ Write([]byte) (int, error) }, c doctorCheck) {
	if c.err != nil {
		fmt.Fprintf(out, "FAIL %s: %v\n", c.name, c.err)
		return
	}
	fmt.Fprintf(out, "OK   %s\n", c.name)
}
