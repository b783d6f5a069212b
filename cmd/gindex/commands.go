package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/crdt"
	"github.com/WoelkiM/antidote/internal/gindex"
	"github.com/WoelkiM/antidote/internal/repair"
)

func newApplyCmd(a *app) *cobra.Command {
	var f opFlags
	cmd := &cobra.Command{
		Use:   "apply <type> <key> <verb> [args...]",
		Short: "Apply one operation to the index file",
		Long: `Apply one operation to the index file. Verbs:
  assign <value>             register_lww
  increment [n]              counter_pn, counter_b
  decrement [n]              counter_pn, counter_b
  transfer <n> <actor>       counter_b
  add <elem>...              set_go`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.actor == "" {
				f.actor = a.cfg.ReplicaID
			}
			op, err := parseOp(args, f)
			if err != nil {
				return err
			}

			g, err := a.load()
			if err != nil {
				return err
			}
			if !g.IsOperation(op) {
				return errors.Errorf("invalid %s operation %T", op.Type, op.Op)
			}
			eff, err := g.Downstream(op)
			if err != nil {
				return err
			}
			next, err := g.Update(eff)
			if err != nil {
				return err
			}
			if err := a.save(next); err != nil {
				return err
			}

			a.logger.Info("applied operation",
				zap.String("type", string(op.Type)),
				zap.String("key", op.Key))
			e, err := next.Lookup(op.Key)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", op.Key, e.Value)
			return nil
		},
	}
	cmd.Flags().StringVar(&f.actor, "actor", "", "actor for counter operations (defaults to the replica id)")
	cmd.Flags().Int64Var(&f.timestamp, "timestamp", 0, "explicit register timestamp")
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the bound type and every bucket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			bound := string(g.Bound())
			if bound == "" {
				bound = "(unbound)"
			}
			fmt.Fprintf(w, "type: %s\nkeys: %d\n", bound, g.Len())
			printEntries(w, g.Value())
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <value>",
		Short: "Print the keys indexed under a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load()
			if err != nil {
				return err
			}
			e, err := g.Get(crdt.ParseValue(args[0]))
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), []gindex.Entry{e})
			return nil
		},
	}
}

func newLookupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <key>",
		Short: "Print the bucket a key is indexed under",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.load()
			if err != nil {
				return err
			}
			e, err := g.Lookup(args[0])
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), []gindex.Entry{e})
			return nil
		},
	}
}

func newRangeCmd(a *app) *cobra.Command {
	var gt, gte, lt, lte string
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Print the buckets between a lower and an upper bound",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lower, upper, err := rangeBounds(cmd, gt, gte, lt, lte)
			if err != nil {
				return err
			}
			g, err := a.load()
			if err != nil {
				return err
			}
			entries, err := g.Range(lower, upper)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().StringVar(&gt, "gt", "", "values greater than")
	cmd.Flags().StringVar(&gte, "gte", "", "values greater than or equal to")
	cmd.Flags().StringVar(&lt, "lt", "", "values less than")
	cmd.Flags().StringVar(&lte, "lte", "", "values less than or equal to")
	cmd.MarkFlagsMutuallyExclusive("gt", "gte")
	cmd.MarkFlagsMutuallyExclusive("lt", "lte")
	cmd.MarkFlagsOneRequired("gt", "gte")
	cmd.MarkFlagsOneRequired("lt", "lte")
	return cmd
}

func rangeBounds(cmd *cobra.Command, gt, gte, lt, lte string) (gindex.Predicate, gindex.Predicate, error) {
	var lower, upper gindex.Predicate
	switch {
	case cmd.Flags().Changed("gt"):
		lower = gindex.Gt(crdt.ParseValue(gt))
	case cmd.Flags().Changed("gte"):
		lower = gindex.Gte(crdt.ParseValue(gte))
	default:
		return lower, upper, errors.New("one of --gt or --gte is required")
	}
	switch {
	case cmd.Flags().Changed("lt"):
		upper = gindex.Lt(crdt.ParseValue(lt))
	case cmd.Flags().Changed("lte"):
		upper = gindex.Lte(crdt.ParseValue(lte))
	default:
		return lower, upper, errors.New("one of --lt or --lte is required")
	}
	return lower, upper, nil
}

func newDiffCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <other-file>",
		Short: "Compare the index file with another replica's file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			local, err := a.load()
			if err != nil {
				return err
			}
			remote, err := a.store.Get(args[0], a.options()...)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			divs := repair.Diff(local, remote)
			if len(divs) == 0 {
				fmt.Fprintln(w, "in sync")
				return nil
			}
			for _, d := range divs {
				fmt.Fprintln(w, d)
			}
			a.logger.Warn("replicas diverge", zap.Int("divergences", len(divs)))
			return nil
		},
	}
}

func printEntries(w io.Writer, entries []gindex.Entry) {
	for _, e := range entries {
		fmt.Fprintf(w, "%s: [%s]\n", e.Value, strings.Join(e.Keys, ", "))
	}
}
