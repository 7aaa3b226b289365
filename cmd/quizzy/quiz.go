package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ydethe/quizzy/internal/quiz"
)

func (c *cli) quizCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "quiz", Short: "Definiciones de quiz"}

	var dir string
	check := &cobra.Command{
		Use:   "check [name...]",
		Short: "Valida los YAML del directorio de quizzes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = c.cfg.Quizzes.Dir
			}
			src := quiz.NewDirSource(dir)
			names := args
			if len(names) == 0 {
				var err error
				if names, err = src.List(cmd.Context()); err != nil {
					return err
				}
			}
			var errs []error
			for _, n := range names {
				q, err := src.Load(cmd.Context(), n)
				if err != nil {
					errs = append(errs, err)
					fmt.Fprintf(c.out, "FAIL %s: %v\n", n, err)
					continue
				}
				fmt.Fprintf(c.out, "ok   %s (%d preguntas, %s)\n", n, q.NumQuestions(), q.Hash[:12])
			}
			return errors.Join(errs...)
		},
	}
	check.Flags().StringVar(&dir, "dir", "", "Directorio de quizzes (default: quizzes.dir)")

	cmd.AddCommand(check)
	return cmd
}
