package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hr-toolkit/internal/discovery"
	"hr-toolkit/internal/model"
	"hr-toolkit/internal/seed"
	"hr-toolkit/internal/smoke"
)

var (
	discoverPersist bool

	smokeFile   string
	smokeRecord string
	smokeUpdate string

	seedFile  string
	seedPurge bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover <candidates.yaml>",
	Short: "Find the record shape a collection accepts",
	Long: `Insert candidate shapes one by one until the backend accepts one.
Each accepted probe row is read back and deleted straight away.

The candidates file names the collection and lists shapes in the order
they are tried:

  collection: profiles
  candidates:
    - {email: probe@example.com, full_name: Probe}
    - {email: probe@example.com}`,
	Args: cobra.ExactArgs(1),
	RunE: runDiscover,
}

var smokeCmd = &cobra.Command{
	Use:   "smoke [collection]",
	Short: "Run create, read, update and delete against a collection",
	Long: `Run a CRUD smoke test. Either pass a collection with --record and
--update as JSON objects, or --file with a YAML list of cases.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSmoke,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load a seed fixture (the built-in demo organisation by default)",
	RunE:  runSeed,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverPersist, "persist", false, "Save the accepted shape as the collection's canonical schema")

	smokeCmd.Flags().StringVarP(&smokeFile, "file", "f", "", "YAML file with a list of smoke cases")
	smokeCmd.Flags().StringVar(&smokeRecord, "record", "{}", "Record to create, as a JSON object")
	smokeCmd.Flags().StringVar(&smokeUpdate, "update", "{}", "Fields to update, as a JSON object")

	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML fixture file (default: built-in demo fixture)")
	seedCmd.Flags().BoolVar(&seedPurge, "purge", false, "Delete the seeded rows again after loading")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	candidates, err := discovery.ParseCandidates(f)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	prober := discovery.NewProber(a.store, a.log)
	if a.db != nil {
		prober.WithSchemaSaver(a.db)
	}
	res, runErr := prober.Discover(cmd.Context(), candidates.Collection, candidates.Candidates, discovery.Options{Persist: discoverPersist})
	if err := printJSON(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if !res.Matched {
		return fmt.Errorf("%s: no candidate accepted", candidates.Collection)
	}
	return nil
}

func runSmoke(cmd *cobra.Command, args []string) error {
	cases, err := smokeCases(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	reports := smoke.NewTester(a.store, a.log).RunSuite(cmd.Context(), cases)
	if err := printJSON(cmd.OutOrStdout(), reports); err != nil {
		return err
	}

	total := 0
	for _, r := range reports {
		total += r.Passed
		if r.LeakedID != "" {
			return fmt.Errorf("%s: smoke row %s was not removed", r.Collection, r.LeakedID)
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d/%d stages passed\n", total, len(reports)*len(model.Stages))
	return nil
}

func smokeCases(args []string) ([]model.SmokeCase, error) {
	if smokeFile != "" {
		data, err := os.ReadFile(smokeFile)
		if err != nil {
			return nil, err
		}
		var cases []model.SmokeCase
		if err := yaml.Unmarshal(data, &cases); err != nil {
			return nil, fmt.Errorf("decode smoke cases: %w", err)
		}
		return cases, nil
	}
	if len(args) == 0 {
		return nil, errors.New("a collection or --file is required")
	}

	c := model.SmokeCase{Collection: args[0]}
	if err := json.Unmarshal([]byte(smokeRecord), &c.Record); err != nil {
		return nil, fmt.Errorf("--record: %w", err)
	}
	if err := json.Unmarshal([]byte(smokeUpdate), &c.Update); err != nil {
		return nil, fmt.Errorf("--update: %w", err)
	}
	return []model.SmokeCase{c}, nil
}

func runSeed(cmd *cobra.Command, _ []string) error {
	var (
		fx  model.Fixture
		err error
	)
	if seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			return err
		}
		defer f.Close()
		fx, err = seed.ParseFixture(f)
		if err != nil {
			return err
		}
	} else if fx, err = seed.DemoFixture(); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	loader := seed.NewLoader(a.store, a.log)
	summary, err := loader.Load(cmd.Context(), fx)
	if err != nil {
		return err
	}
	if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
		return err
	}
	if seedPurge {
		return loader.Purge(cmd.Context(), summary)
	}
	return nil
}
