package interview

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/speech"
)

const introQuestionID = 0

// Speaker says a fixed text. Failures are absorbed and only show in Stats.
type Speaker interface {
	SpeakText(ctx context.Context, text string) speech.Stats
}

// Scorer grades one answer. It never fails; a broken backend yields a
// degraded analysis.
type Scorer interface {
	ScoreTurn(ctx context.Context, turn models.Turn, role models.Role) models.QuestionAnalysis
}

// Transitioner phrases the segue after an answer. questionNum is 1-based,
// zero with isIntro.
type Transitioner interface {
	Dynamic(ctx context.Context, answer string, questionNum, total int, isIntro bool) string
}

// Transcript is what a locally driven interview produced.
type Transcript struct {
	Intro         models.Turn
	IntroAnalysis models.QuestionAnalysis
	Turns         []models.Turn
	Analyses      []models.QuestionAnalysis
}

// Driver runs the local interview loop: intro, then for every question
// ask, listen, score and transition.
type Driver struct {
	Speaker     Speaker
	Listener    Listener
	Evaluator   Scorer
	Transitions Transitioner
	Log         *logrus.Logger

	// ListenTimeout bounds one listen cycle so shutdown is noticed.
	ListenTimeout time.Duration
	// MaxListenCycles records an empty answer after this many silent cycles.
	// Zero listens until ctx is done.
	MaxListenCycles int
	// DeferScoring skips per-turn grading. Turns are then graded later by
	// the evaluation pipeline and Evaluator may be nil.
	DeferScoring bool

	// OnState is called after every phase change.
	OnState func(State)
	// OnTurn is called once a turn has been scored.
	OnTurn func(models.Turn, models.QuestionAnalysis)
}

func (d *Driver) defaults() {
	if d.ListenTimeout <= 0 {
		d.ListenTimeout = 30 * time.Second
	}
	if d.Log == nil {
		d.Log = logrus.New()
	}
}

// Run drives sess from questions_ready to completed. On cancellation it
// returns the transcript gathered so far together with the context error.
func (d *Driver) Run(ctx context.Context, sess *models.Session, intro string) (*Transcript, error) {
	if d.Speaker == nil || d.Listener == nil || d.Transitions == nil || (d.Evaluator == nil && !d.DeferScoring) {
		return nil, errors.New("interview driver missing dependency: Speaker/Listener/Evaluator/Transitions must be set")
	}
	d.defaults()
	if len(sess.Questions) == 0 {
		return nil, errors.New("interview driver: session has no questions")
	}

	m, err := NewMachineAt(State{Phase: PhaseQuestionsReady}, len(sess.Questions), d.DeferScoring)
	if err != nil {
		return nil, err
	}
	log := d.Log.WithFields(logrus.Fields{"session_id": sess.SessionID, "role": sess.Role})
	tr := &Transcript{}
	total := len(sess.Questions)

	// intro exchange
	d.Speaker.SpeakText(ctx, intro)
	ans, err := d.listen(ctx, introQuestionID)
	if err != nil {
		return tr, err
	}
	tr.Intro = models.Turn{QuestionID: introQuestionID, QuestionText: intro, AnswerText: ans.Text, AnswerDuration: ans.Duration}
	if !d.DeferScoring {
		tr.IntroAnalysis = d.Evaluator.ScoreTurn(ctx, tr.Intro, sess.Role)
	}
	d.Speaker.SpeakText(ctx, d.Transitions.Dynamic(ctx, ans.Text, 0, total, true))

	for {
		n, err := m.Ask()
		if err != nil {
			return tr, err
		}
		d.entered(m)
		q := sess.Questions[n-1]
		log.WithField("question", n).Info("asking question")

		d.Speaker.SpeakText(ctx, q.Text)
		if err := m.Await(); err != nil {
			return tr, err
		}
		d.entered(m)

		ans, err := d.listen(ctx, n)
		if err != nil {
			return tr, err
		}
		turn := models.Turn{QuestionID: q.ID, QuestionText: q.Text, AnswerText: ans.Text, AnswerDuration: ans.Duration}

		tr.Turns = append(tr.Turns, turn)
		if !d.DeferScoring {
			if err := m.Evaluate(); err != nil {
				return tr, err
			}
			d.entered(m)
			analysis := d.Evaluator.ScoreTurn(ctx, turn, sess.Role)
			tr.Analyses = append(tr.Analyses, analysis)
			if d.OnTurn != nil {
				d.OnTurn(turn, analysis)
			}
		}

		d.Speaker.SpeakText(ctx, d.Transitions.Dynamic(ctx, ans.Text, n, total, false))
		if !m.HasNext() {
			break
		}
	}

	if err := m.Complete(); err != nil {
		return tr, err
	}
	d.entered(m)
	log.WithField("turns", len(tr.Turns)).Info("interview completed")
	return tr, nil
}

// listen repeats bounded listen cycles until an answer arrives.
func (d *Driver) listen(ctx context.Context, n int) (Answer, error) {
	for cycle := 1; ; cycle++ {
		if err := ctx.Err(); err != nil {
			return Answer{}, err
		}
		ans, err := d.Listener.Listen(ctx, n, d.ListenTimeout)
		if err == nil {
			return ans, nil
		}
		if errors.Is(err, ErrTranscription) {
			d.Log.WithError(err).WithField("question", n).Warn("answer not transcribed; recording an empty answer")
			return Answer{Duration: ans.Duration}, nil
		}
		if !errors.Is(err, ErrListenTimeout) {
			return Answer{}, err
		}
		if d.MaxListenCycles > 0 && cycle >= d.MaxListenCycles {
			d.Log.WithField("question", n).Warn("no answer heard; recording an empty answer")
			return Answer{Duration: float64(cycle) * d.ListenTimeout.Seconds()}, nil
		}
	}
}

func (d *Driver) entered(m *Machine) {
	if d.OnState != nil {
		d.OnState(m.State())
	}
}
