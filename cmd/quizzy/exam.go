package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ydethe/quizzy/internal/app"
	"github.com/ydethe/quizzy/internal/config"
	"github.com/ydethe/quizzy/internal/email"
	"github.com/ydethe/quizzy/internal/exam"
)

func (c *cli) examCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "exam", Short: "Links de examen"}

	var e exam.Examen
	var send bool
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Emite un link de examen (y opcionalmente lo envía por email)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.QuizID == "" {
				return fmt.Errorf("--quiz es requerido")
			}
			if send && e.Email == "" {
				return fmt.Errorf("--send requiere --email")
			}
			codec, err := app.NewCodec(c.cfg)
			if err != nil {
				return err
			}
			token, err := codec.Issue(e)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, email.ExamLink(c.cfg.App.PublicBaseURL, token))
			if !send {
				return nil
			}
			mailer := app.NewMailer(c.cfg)
			if mailer == nil {
				return fmt.Errorf("SMTP no configurado (SMTP_HOST, SMTP_FROM)")
			}
			if err := email.Invite(cmd.Context(), mailer, c.cfg.App.PublicBaseURL, e, token); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "enviado a %s\n", e.Email)
			return nil
		},
	}
	issue.Flags().StringVar(&e.QuizID, "quiz", "", "Nombre del quiz")
	issue.Flags().StringVar(&e.Email, "email", "", "Email del candidato")
	issue.Flags().StringVar(&e.LastName, "last-name", "", "Apellido del candidato")
	issue.Flags().StringVar(&e.FirstName, "first-name", "", "Nombre del candidato")
	issue.Flags().BoolVar(&send, "send", false, "Envía la invitación por SMTP")

	inspect := &cobra.Command{
		Use:   "inspect <token>",
		Short: "Verifica un token y muestra su contenido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec, err := app.NewCodec(c.cfg)
			if err != nil {
				return err
			}
			env, err := codec.Open(args[0])
			if err != nil {
				return err
			}
			maxAge, err := config.Duration(c.cfg.Exam.MaxAge)
			if err != nil {
				return err
			}
			out := map[string]any{
				"quiz":       env.Examen.QuizID,
				"email":      env.Examen.Email,
				"last_name":  env.Examen.LastName,
				"first_name": env.Examen.FirstName,
				"issued_at":  env.IssuedAt.UTC().Format(time.RFC3339),
				"expired":    exam.CheckAge(env, maxAge, time.Now()) != nil,
			}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	cmd.AddCommand(issue, inspect)
	return cmd
}
