package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/nudge/internal/friction"
	"github.com/lazypower/nudge/internal/resolver"
	"github.com/lazypower/nudge/internal/script"
)

var (
	scriptStage     int
	scriptAll       bool
	scriptProduct   string
	scriptPrice     float64
	scriptStock     int
	scriptCartTotal float64
	scriptCartItems int
)

var scriptCmd = &cobra.Command{
	Use:   "script [type]",
	Short: "Preview intervention scripts",
	Long: "Render the script for a friction type and stage. Product and cart flags fill the " +
		"context; without them the generic text is shown.",
	Args: cobra.ExactArgs(1),
	RunE: runScript,
}

func init() {
	scriptCmd.Flags().IntVar(&scriptStage, "stage", 1, "escalation stage (1-3)")
	scriptCmd.Flags().BoolVar(&scriptAll, "all", false, "render every stage")
	scriptCmd.Flags().StringVar(&scriptProduct, "product", "", "product name")
	scriptCmd.Flags().Float64Var(&scriptPrice, "price", 0, "product price")
	scriptCmd.Flags().IntVar(&scriptStock, "stock", 0, "units in stock")
	scriptCmd.Flags().Float64Var(&scriptCartTotal, "cart-total", 0, "cart total")
	scriptCmd.Flags().IntVar(&scriptCartItems, "cart-items", 0, "cart item count")
}

func previewContext(t friction.Type) resolver.Context {
	ctx := resolver.Generic(t)
	if scriptProduct != "" || scriptPrice > 0 || scriptStock > 0 {
		ctx.Kind = resolver.KindProduct
		ctx.Product = &resolver.ProductFacts{Name: scriptProduct, Price: scriptPrice, Stock: scriptStock}
	}
	if scriptCartTotal > 0 || scriptCartItems > 0 {
		ctx.Kind = resolver.KindCart
		ctx.CartTotal = scriptCartTotal
		ctx.CartItems = scriptCartItems
	}
	return ctx
}

func runScript(cmd *cobra.Command, args []string) error {
	t := friction.Type(args[0])
	if !friction.Known(t) {
		known := make([]string, 0, len(friction.AllTypes))
		for _, k := range friction.AllTypes {
			known = append(known, string(k))
		}
		return fmt.Errorf("unknown friction type %q (known: %s)", args[0], strings.Join(known, ", "))
	}

	stages := script.Stages(t)
	ctx := previewContext(t)
	first, last := scriptStage, scriptStage
	if scriptAll {
		first, last = 1, stages
	}
	out := cmd.OutOrStdout()
	for stage := first; stage <= last; stage++ {
		g := script.Generate(t, ctx, stage)
		fmt.Fprintf(out, "%d/%d [%s] %s\n", min(max(stage, 1), stages), stages, g.UIType, g.Script)
	}
	return nil
}
