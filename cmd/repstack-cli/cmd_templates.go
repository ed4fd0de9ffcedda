package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/meltforce/repstack/internal/client"
	"github.com/meltforce/repstack/internal/models"
	"github.com/spf13/cobra"
)

var (
	templatesCmd = &cobra.Command{
		Use:   "templates",
		Short: "Manage workout templates",
	}
	templatesListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all templates",
		RunE:  runTemplatesList,
	}
	templatesCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Create an empty template",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplatesCreate,
	}
	templatesShowCmd = &cobra.Command{
		Use:   "show [template-id]",
		Short: "Show a template's ordered groups and exercises",
		Args:  cobra.ExactArgs(1),
		RunE:  runTemplatesShow,
	}

	groupKind    string
	groupRest    int
	groupAfter   string
	groupAddCmd  = &cobra.Command{
		Use:   "add-group [template-id]",
		Short: "Add a group to a template",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupAdd,
	}
	moveBefore   string
	groupMoveCmd = &cobra.Command{
		Use:   "move-group [template-id] [group-id]",
		Short: "Move a group (default: to the end; --before places it before a sibling)",
		Args:  cobra.ExactArgs(2),
		RunE:  runGroupMove,
	}

	itemSets    int
	itemReps    int
	itemWeight  float64
	itemAfter   string
	itemAddCmd  = &cobra.Command{
		Use:   "add-item [group-id] [exercise-id]",
		Short: "Add an exercise to a group",
		Args:  cobra.ExactArgs(2),
		RunE:  runItemAdd,
	}
	itemMoveCmd = &cobra.Command{
		Use:   "move-item [template-id] [item-id] [target-group-id]",
		Short: "Move an item into a group (default: to the end; --before places it before a sibling)",
		Args:  cobra.ExactArgs(3),
		RunE:  runItemMove,
	}
)

func init() {
	groupAddCmd.Flags().StringVar(&groupKind, "kind", "single", "group kind: single, paired, triple, circuit")
	groupAddCmd.Flags().IntVar(&groupRest, "rest", 90, "default rest seconds between sets")
	groupAddCmd.Flags().StringVar(&groupAfter, "after", "", "group id to insert after (default: end)")
	groupMoveCmd.Flags().StringVar(&moveBefore, "before", "", "sibling id to place the node before (default: end)")
	itemAddCmd.Flags().IntVar(&itemSets, "sets", 3, "target sets")
	itemAddCmd.Flags().IntVar(&itemReps, "reps", 8, "target reps")
	itemAddCmd.Flags().Float64Var(&itemWeight, "weight", 0, "target weight in kg")
	itemAddCmd.Flags().StringVar(&itemAfter, "after", "", "item id to insert after (default: end)")
	itemMoveCmd.Flags().StringVar(&moveBefore, "before", "", "sibling id to place the node before (default: end)")

	templatesCmd.AddCommand(templatesListCmd, templatesCreateCmd, templatesShowCmd,
		groupAddCmd, groupMoveCmd, itemAddCmd, itemMoveCmd)
	rootCmd.AddCommand(templatesCmd)
}

// parseOptionalID turns an optional flag value into a *uuid.UUID.
func parseOptionalID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return &id, nil
}

func printTree(tree *models.TemplateTree) {
	fmt.Printf("%s  (%s)\n", tree.Name, tree.ID)
	for _, g := range tree.Groups {
		fmt.Printf("  %s [%s, rest %ds]  (%s)\n", g.Name, g.Kind, g.RestSeconds, g.ID)
		for _, it := range g.Items {
			fmt.Printf("    %s  %dx%d @ %.1fkg, rest %ds  (%s)\n",
				it.ExerciseName, it.TargetSets, it.TargetReps, it.TargetWeightKg,
				it.RestSecondsEffective, it.ID)
		}
	}
}

func runTemplatesList(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	templates, err := c.ListTemplates(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tUPDATED")
	for _, t := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, t.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func runTemplatesCreate(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	t, err := c.CreateTemplate(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(t.ID)
	return nil
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	tree, err := c.GetTemplateTree(cmd.Context(), id)
	if err != nil {
		return err
	}
	printTree(tree)
	return nil
}

func runGroupAdd(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	templateID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	after, err := parseOptionalID(groupAfter)
	if err != nil {
		return err
	}
	kind := models.GroupKind(groupKind)
	if !kind.Valid() {
		return fmt.Errorf("invalid kind %q", groupKind)
	}
	return c.InsertGroup(cmd.Context(), templateID, after, kind, groupRest)
}

// runGroupMove goes through the optimistic cache so the predicted order is
// shown before the server confirms, exactly as an interactive view would.
func runGroupMove(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	templateID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	groupID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	before, err := parseOptionalID(moveBefore)
	if err != nil {
		return err
	}

	cache := client.NewTreeCache(c)
	if err := cache.MoveGroup(cmd.Context(), templateID, groupID, before); err != nil {
		return err
	}
	tree, err := cache.Get(cmd.Context(), templateID)
	if err != nil {
		return err
	}
	printTree(tree)
	return nil
}

func runItemAdd(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	groupID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid group id: %w", err)
	}
	exerciseID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid exercise id: %w", err)
	}
	after, err := parseOptionalID(itemAfter)
	if err != nil {
		return err
	}
	return c.InsertItem(cmd.Context(), groupID, client.ItemTargets{
		ExerciseID:  exerciseID,
		AfterItemID: after,
		Sets:        itemSets,
		Reps:        itemReps,
		WeightKg:    itemWeight,
	})
}

func runItemMove(cmd *cobra.Command, args []string) error {
	c, err := api()
	if err != nil {
		return err
	}
	templateID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid template id: %w", err)
	}
	itemID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("invalid item id: %w", err)
	}
	targetGroupID, err := uuid.Parse(args[2])
	if err != nil {
		return fmt.Errorf("invalid target group id: %w", err)
	}
	before, err := parseOptionalID(moveBefore)
	if err != nil {
		return err
	}

	cache := client.NewTreeCache(c)
	if err := cache.MoveItem(cmd.Context(), templateID, itemID, targetGroupID, before); err != nil {
		return err
	}
	tree, err := cache.Get(cmd.Context(), templateID)
	if err != nil {
		return err
	}
	printTree(tree)
	return nil
}
