package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yanmxa/finsight/internal/chat"
)

var cardCmd = &cobra.Command{
	Use:   "card SYMBOL",
	Short: "Generate a summary card for a ticker symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		card, err := a.svc.GenerateCard(ctx, args[0])
		if err != nil {
			return errors.New(chat.Describe(err))
		}
		fmt.Println(titleStyle.Render(card.Emoji + " " + card.Title))
		fmt.Println(renderMarkdown(card.Content))
		return nil
	},
}
