package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rnwolf/dbr/internal/api"
	"github.com/rnwolf/dbr/internal/client"
)

// fixture is an organization described in YAML. Entities refer to each
// other by name (CCRs, boards) or by ref (work items).
type fixture struct {
	Organization string            `yaml:"organization"`
	CCRs         []fixtureCCR      `yaml:"ccrs"`
	Boards       []fixtureBoard    `yaml:"boards"`
	WorkItems    []fixtureWorkItem `yaml:"work_items"`
	Schedules    []fixtureSchedule `yaml:"schedules"`
}

type fixtureCCR struct {
	Name     string  `yaml:"name"`
	Capacity float64 `yaml:"capacity"`
}

type fixtureBoard struct {
	Name     string `yaml:"name"`
	CCR      string `yaml:"ccr"`
	Pre      int    `yaml:"pre"`
	Post     int    `yaml:"post"`
	TimeUnit string `yaml:"time_unit"`
}

type fixtureWorkItem struct {
	Ref         string             `yaml:"ref"`
	Title       string             `yaml:"title"`
	Description string             `yaml:"description"`
	Status      string             `yaml:"status"`
	Hours       map[string]float64 `yaml:"hours"` // keyed by CCR name or key
	DependsOn   []string           `yaml:"depends_on"`
}

type fixtureSchedule struct {
	Board     string   `yaml:"board"`
	WorkItems []string `yaml:"work_items"`
}

// parseFixture decodes a fixture and checks that every reference resolves.
func parseFixture(r io.Reader) (*fixture, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var fx fixture
	if err := dec.Decode(&fx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty fixture")
		}
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}

	var errs []error
	if fx.Organization == "" {
		errs = append(errs, errors.New("organization is required"))
	}
	ccrs := make(map[string]bool)
	for _, c := range fx.CCRs {
		if ccrs[c.Name] {
			errs = append(errs, fmt.Errorf("ccr %q defined twice", c.Name))
		}
		ccrs[c.Name] = true
	}
	boards := make(map[string]bool)
	for _, b := range fx.Boards {
		if boards[b.Name] {
			errs = append(errs, fmt.Errorf("board %q defined twice", b.Name))
		}
		boards[b.Name] = true
		if !ccrs[b.CCR] {
			errs = append(errs, fmt.Errorf("board %q: unknown ccr %q", b.Name, b.CCR))
		}
	}
	items := make(map[string]bool)
	for _, it := range fx.WorkItems {
		if it.Ref == "" {
			errs = append(errs, fmt.Errorf("work item %q: ref is required", it.Title))
			continue
		}
		if items[it.Ref] {
			errs = append(errs, fmt.Errorf("work item ref %q defined twice", it.Ref))
		}
		items[it.Ref] = true
	}
	for _, it := range fx.WorkItems {
		for _, dep := range it.DependsOn {
			if !items[dep] {
				errs = append(errs, fmt.Errorf("work item %q: depends on unknown ref %q", it.Ref, dep))
			}
		}
	}
	for i, s := range fx.Schedules {
		if !boards[s.Board] {
			errs = append(errs, fmt.Errorf("schedule %d: unknown board %q", i+1, s.Board))
		}
		for _, ref := range s.WorkItems {
			if !items[ref] {
				errs = append(errs, fmt.Errorf("schedule %d: unknown work item ref %q", i+1, ref))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &fx, nil
}

// seedResult maps fixture names and refs to the ids the server assigned.
type seedResult struct {
	OrganizationID string            `json:"organization_id"`
	CCRs           map[string]string `json:"ccrs"`
	Boards         map[string]string `json:"boards"`
	WorkItems      map[string]string `json:"work_items"`
	Dependencies   int               `json:"dependencies"`
	Schedules      []string          `json:"schedules"`
}

// applyFixture creates the fixture through c in dependency order.
// Work item hours may name CCRs by name; the server normalizes keys.
func applyFixture(ctx context.Context, c client.Client, fx *fixture) (*seedResult, error) {
	org, err := c.CreateOrganization(ctx, &api.CreateOrganizationRequest{Name: fx.Organization})
	if err != nil {
		return nil, fmt.Errorf("organization: %w", err)
	}
	res := &seedResult{
		OrganizationID: org.ID,
		CCRs:           make(map[string]string),
		Boards:         make(map[string]string),
		WorkItems:      make(map[string]string),
	}

	for _, fc := range fx.CCRs {
		ccr, err := c.CreateCCR(ctx, &api.CreateCCRRequest{OrganizationID: org.ID, Name: fc.Name, CapacityPerTimeUnit: fc.Capacity})
		if err != nil {
			return res, fmt.Errorf("ccr %q: %w", fc.Name, err)
		}
		res.CCRs[fc.Name] = ccr.ID
	}
	for _, fb := range fx.Boards {
		board, err := c.CreateBoard(ctx, &api.CreateBoardRequest{
			OrganizationID:           org.ID,
			Name:                     fb.Name,
			CCRID:                    res.CCRs[fb.CCR],
			PreConstraintBufferSize:  fb.Pre,
			PostConstraintBufferSize: fb.Post,
			TimeUnit:                 fb.TimeUnit,
		})
		if err != nil {
			return res, fmt.Errorf("board %q: %w", fb.Name, err)
		}
		res.Boards[fb.Name] = board.ID
	}
	for _, fi := range fx.WorkItems {
		item, err := c.CreateWorkItem(ctx, &api.CreateWorkItemRequest{
			OrganizationID:   org.ID,
			Title:            fi.Title,
			Description:      fi.Description,
			Status:           fi.Status,
			CCRHoursRequired: fi.Hours,
		})
		if err != nil {
			return res, fmt.Errorf("work item %q: %w", fi.Ref, err)
		}
		res.WorkItems[fi.Ref] = item.ID
	}
	for _, fi := range fx.WorkItems {
		for _, dep := range fi.DependsOn {
			_, err := c.AddDependency(ctx, &api.AddDependencyRequest{
				DependentID:    res.WorkItems[fi.Ref],
				PrerequisiteID: res.WorkItems[dep],
			})
			if err != nil {
				return res, fmt.Errorf("dependency %s -> %s: %w", fi.Ref, dep, err)
			}
			res.Dependencies++
		}
	}
	for i, fs := range fx.Schedules {
		ids := make([]string, len(fs.WorkItems))
		for j, ref := range fs.WorkItems {
			ids[j] = res.WorkItems[ref]
		}
		sched, err := c.CreateSchedule(ctx, &api.CreateScheduleRequest{
			OrganizationID: org.ID,
			BoardConfigID:  res.Boards[fs.Board],
			WorkItemIDs:    ids,
		})
		if err != nil {
			return res, fmt.Errorf("schedule %d: %w", i+1, err)
		}
		res.Schedules = append(res.Schedules, sched.ID)
	}
	return res, nil
}

var seedCmd = &cobra.Command{
	Use:     "seed <fixture.yaml>",
	Short:   "Create an organization from a YAML fixture",
	GroupID: "system",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		fx, err := parseFixture(f)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		res, err := applyFixture(cmd.Context(), dbrClient, fx)
		if err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
		return emit(cmd.OutOrStdout(), res, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "seeded organization %s: %d CCRs, %d boards, %d work items, %d dependencies, %d schedules\n",
				res.OrganizationID, len(res.CCRs), len(res.Boards), len(res.WorkItems), res.Dependencies, len(res.Schedules))
			return err
		})
	},
}
