package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoockh/yoointerview/internal/bootstrap"
	"github.com/yoockh/yoointerview/internal/interview"
	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/services"
	"github.com/yoockh/yoointerview/internal/speech"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a spoken mock interview against a resume",
	RunE:  runInterview,
}

func init() {
	runCmd.Flags().StringP("resume", "r", "", "path to the resume (pdf, docx or txt)")
	runCmd.Flags().String("role", "", "SDE, DataScientist or ProductManager (prompted when empty)")
	runCmd.Flags().String("answers-dir", "", "listen for recorded answers (answer_<n>.wav) in this directory instead of typed ones")
	runCmd.Flags().Duration("listen-timeout", 30*time.Second, "length of one listen cycle")
	runCmd.Flags().Int("max-silence", 10, "silent listen cycles before an empty answer is recorded (0 waits forever)")
	runCmd.Flags().StringP("output", "o", "", "write the final evaluation as JSON to this file")
	runCmd.Flags().Bool("keep", false, "keep the session after the interview")
	_ = runCmd.MarkFlagRequired("resume")

	rootCmd.AddCommand(runCmd)
}

func pickRole(flag string) (models.Role, error) {
	if flag != "" {
		r, ok := models.ParseRole(flag)
		if !ok {
			return "", fmt.Errorf("unknown role %q", flag)
		}
		return r, nil
	}

	items := make([]string, len(models.Roles))
	for i, r := range models.Roles {
		items[i] = r.DisplayName()
	}
	prompt := promptui.Select{Label: "Interview role", Items: items}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return models.Roles[idx], nil
}

// consoleSpeaker prints every line before it is spoken.
type consoleSpeaker struct {
	session *speech.Session
}

func (s *consoleSpeaker) SpeakText(ctx context.Context, text string) speech.Stats {
	color.Cyan("Interviewer: %s", text)
	return s.session.SpeakText(ctx, text)
}

func newPlayer(c *bootstrap.Container) speech.Player {
	if c.Synth == nil {
		return speech.DiscardPlayer{}
	}
	p, err := speech.NewExecPlayer()
	if err != nil {
		c.Log.WithError(err).Warn("audio playback disabled")
		return speech.DiscardPlayer{}
	}
	return p
}

func runInterview(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	resumePath, _ := flags.GetString("resume")
	roleFlag, _ := flags.GetString("role")
	answersDir, _ := flags.GetString("answers-dir")
	listenTimeout, _ := flags.GetDuration("listen-timeout")
	maxSilence, _ := flags.GetInt("max-silence")
	output, _ := flags.GetString("output")
	keep, _ := flags.GetBool("keep")

	role, err := pickRole(roleFlag)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(resumePath)
	if err != nil {
		return fmt.Errorf("read resume: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	color.Yellow("Preparing your %s interview...", role.DisplayName())
	out, err := c.Interview.Initialize(ctx, services.InitializeInput{
		Filename: filepath.Base(resumePath),
		Data:     data,
		Role:     string(role),
	})
	if err != nil {
		return err
	}
	if !keep {
		defer func() {
			if err := c.Sessions.Delete(context.WithoutCancel(ctx), out.SessionID); err != nil {
				c.Log.WithError(err).Warn("failed to delete session")
			}
		}()
	}

	sess, err := c.Sessions.Load(ctx, out.SessionID)
	if err != nil {
		return err
	}

	var listener interview.Listener = interview.NewConsoleListener(os.Stdin)
	if answersDir != "" {
		if c.STT == nil {
			return errors.New("--answers-dir needs SPEECH_TO_TEXT=true")
		}
		listener = interview.NewSpeechListener(c.STT, answersDir, c.Config.SpeechLanguage)
		color.Yellow("Record each answer to %s", filepath.Join(answersDir, "answer_<n>.wav"))
	} else {
		color.Yellow("Type each answer and press Enter.")
	}

	worker := speech.NewWorker(newPlayer(c), make(chan []byte, 64), c.Log)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = worker.Stop(stopCtx)
	}()

	d := &interview.Driver{
		Speaker:         &consoleSpeaker{session: speech.NewSession(c.Synth, worker, c.Log)},
		Listener:        listener,
		Evaluator:       c.Evaluator,
		Transitions:     c.Transitions,
		Log:             c.Log,
		ListenTimeout:   listenTimeout,
		MaxListenCycles: maxSilence,
		OnState: func(st interview.State) {
			c.Log.WithField("state", st.String()).Debug("interview phase")
			if err := c.Sessions.SetPhase(context.WithoutCancel(ctx), sess.SessionID, st.String()); err != nil {
				c.Log.WithError(err).Warn("failed to persist interview phase")
			}
		},
		OnTurn: func(_ models.Turn, a models.QuestionAnalysis) {
			color.Green("  Score %.1f/10: %s", a.Score, a.Feedback)
		},
	}

	tr, err := d.Run(ctx, sess, out.IntroMessage)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			color.Red("Interview stopped.")
			return nil
		}
		return err
	}

	color.Yellow("\nEvaluating your interview...")
	res, err := c.Evaluator.Evaluate(ctx, tr.Turns, sess.Role)
	if err != nil {
		return err
	}
	printResult(res)

	if output != "" {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(output, b, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", output, err)
		}
		c.Log.WithFields(logrus.Fields{"file": output}).Info("evaluation written")
	}
	return nil
}

func printResult(res *models.EvaluationResult) {
	bold := color.New(color.Bold)
	bold.Printf("\nOverall score: %.1f/10\n", res.OverallScore)
	fmt.Println(res.OverallFeedback)

	a := res.Analytics
	fmt.Printf("\nDuration %s, avg response %.1fs, pace %s, depth %s, clarity %s\n",
		a.TotalDuration, a.AverageResponseTime, a.SpeakingPace, a.TechnicalDepth, a.CommunicationClarity)

	if len(res.Recommendations) > 0 {
		bold.Println("\nRecommendations")
		for _, r := range res.Recommendations {
			fmt.Println("  - " + strings.TrimSpace(r))
		}
	}
}
