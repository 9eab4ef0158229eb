package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/CZERTAINLY/Polymarker/internal/log"
	"github.com/CZERTAINLY/Polymarker/internal/model"
	"github.com/CZERTAINLY/Polymarker/internal/service"
	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"gopkg.in/yaml.v3"

	"github.com/spf13/cobra"
)

var (
	flagParams   string // value of run --params
	flagSequence string // value of run --sequence
	flagYAML     bool   // value of sequences --yaml
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run submits the parameters and waits for all jobs to finish",
	RunE:  doRun,
}

var statusCmd = &cobra.Command{
	Use:   "status [job_uuid...]",
	Short: "status prints current state of jobs recorded in the ledger, all running ones without arguments",
	RunE:  doStatus,
}

var forgetCmd = &cobra.Command{
	Use:   "forget job_uuid...",
	Short: "forget removes finished jobs from the ledger, their directories are kept",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doForget,
}

var resultsCmd = &cobra.Command{
	Use:   "results job_uuid...",
	Short: "results collects outputs of jobs from their directories",
	Args:  cobra.MinimumNArgs(1),
	RunE:  doResults,
}

var sequencesCmd = &cobra.Command{
	Use:   "sequences",
	Short: "sequences lists configured sequences",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagYAML {
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer func() {
				_ = enc.Close()
			}()
			return enc.Encode(config.Sequences)
		}
		renderSequences(cmd.OutOrStdout(), config.Sequences)
		return nil
	},
}

func renderSequences(w io.Writer, sequences []model.Sequence) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Name", "Active", "FASTA", "Description"})
	for _, s := range sequences {
		t.AppendRow(table.Row{s.Name, s.Active, s.FastaFilename, s.Description})
	}
	t.Render()
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := log.ContextAttrs(cmd.Context(), cmdAttrs("run"))

	params, err := loadParams(flagParams)
	if err != nil {
		return err
	}
	if flagSequence != "" {
		params.Set(model.ParamContigFilename, flagSequence)
	}

	svc, err := service.New(ctx, config)
	if err != nil {
		return err
	}
	jobs, err := svc.Submit(ctx, params)
	if cerr := svc.Close(ctx); cerr != nil {
		slog.WarnContext(ctx, "jobs are still running", "error", cerr)
	}
	if err != nil {
		return err
	}
	if err := printJobs(cmd.OutOrStdout(), jobs); err != nil {
		return err
	}
	return failed(jobs)
}

func doStatus(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), cmdAttrs("status"))
	svc, err := service.New(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "closing service", "error", err)
		}
	}()

	if len(args) == 0 {
		jobs, err := svc.InProgress(ctx)
		if err != nil {
			return err
		}
		return printJobs(cmd.OutOrStdout(), jobs)
	}

	jobs := make([]*service.Job, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", arg, err)
		}
		j, err := svc.Status(ctx, id)
		if err != nil {
			return err
		}
		jobs = append(jobs, j)
	}
	return printJobs(cmd.OutOrStdout(), jobs)
}

func doForget(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), cmdAttrs("forget"))
	svc, err := service.New(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "closing service", "error", err)
		}
	}()

	var errs []error
	for _, arg := range args {
		id, err := uuid.Parse(arg)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid job id %q: %w", arg, err))
			continue
		}
		if err := svc.Forget(ctx, id); err != nil {
			errs = append(errs, err)
			continue
		}
		slog.InfoContext(ctx, "job forgotten", "job_uuid", id)
	}
	return errors.Join(errs...)
}

func doResults(cmd *cobra.Command, args []string) error {
	ctx := log.ContextAttrs(cmd.Context(), cmdAttrs("results"))
	svc, err := service.New(ctx, config)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(ctx); err != nil {
			slog.ErrorContext(ctx, "closing service", "error", err)
		}
	}()

	jobs := svc.Recover(ctx, args)
	if err := printJobs(cmd.OutOrStdout(), jobs); err != nil {
		return err
	}
	return failed(jobs)
}

func cmdAttrs(name string) slog.Attr {
	return slog.Group("polymarker",
		slog.String("cmd", name),
		slog.Int("pid", os.Getpid()),
	)
}

func loadParams(path string) (*model.ParamSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening parameters: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	params := model.NewParamSet()
	// JSON is a subset of YAML
	if err := yaml.NewDecoder(f).Decode(params); err != nil {
		return nil, fmt.Errorf("parsing parameters %s: %w", path, err)
	}
	return params, nil
}

func printJobs(w io.Writer, jobs []*service.Job) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jobs)
}

func failed(jobs []*service.Job) error {
	var n int
	for _, j := range jobs {
		if j.Status().Failure() {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d of %d jobs failed", n, len(jobs))
	}
	return nil
}
