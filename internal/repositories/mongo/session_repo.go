package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/yoockh/yoointerview/internal/models"
	"github.com/yoockh/yoointerview/internal/utils"
)

const (
	SessionsCollection    = "sessions"
	EvaluationsCollection = "evaluations"
)

// SessionRepo implements repositories.SessionStore on two collections.
type SessionRepo struct {
	db          *mongo.Database
	sessions    *mongo.Collection
	evaluations *mongo.Collection
	now         func() time.Time
}

func NewSessionRepo(db *mongo.Database) *SessionRepo {
	return &SessionRepo{
		db:          db,
		sessions:    db.Collection(SessionsCollection),
		evaluations: db.Collection(EvaluationsCollection),
		now:         time.Now,
	}
}

func (r *SessionRepo) StoreSession(ctx context.Context, s *models.Session) error {
	_, err := r.sessions.ReplaceOne(ctx,
		bson.M{"session_id": s.SessionID},
		s,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *SessionRepo) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SessionRepo) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.sessions.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) StoreEvaluation(ctx context.Context, e *models.Evaluation) error {
	_, err := r.evaluations.ReplaceOne(ctx,
		bson.M{"evaluation_id": e.EvaluationID},
		e,
		options.Replace().SetUpsert(true),
	)
	return err
}

func (r *SessionRepo) GetEvaluation(ctx context.Context, evaluationID string) (*models.Evaluation, error) {
	var e models.Evaluation
	err := r.evaluations.FindOne(ctx, bson.M{"evaluation_id": evaluationID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEvaluation reads, applies and replaces the document, the same
// unlocked read-modify-write as the file store.
func (r *SessionRepo) UpdateEvaluation(ctx context.Context, evaluationID string, u models.EvaluationUpdate) error {
	e, err := r.GetEvaluation(ctx, evaluationID)
	if err != nil {
		return err
	}
	e.Apply(u)
	_, err = r.evaluations.ReplaceOne(ctx, bson.M{"evaluation_id": evaluationID}, e)
	return err
}

func (r *SessionRepo) DeleteEvaluation(ctx context.Context, evaluationID string) error {
	res, err := r.evaluations.DeleteOne(ctx, bson.M{"evaluation_id": evaluationID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) Cleanup(ctx context.Context, maxAge time.Duration) ([]models.Session, error) {
	cutoff := float64(r.now().Add(-maxAge).UnixNano()) / 1e9
	filter := bson.M{"created_at": bson.M{"$lt": cutoff}}

	cur, err := r.sessions.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var old []models.Session
	if err := cur.All(ctx, &old); err != nil {
		return nil, err
	}
	if len(old) == 0 {
		return nil, nil
	}

	ids := make([]string, len(old))
	for i, s := range old {
		ids[i] = s.SessionID
	}
	if _, err := r.sessions.DeleteMany(ctx, bson.M{"session_id": bson.M{"$in": ids}}); err != nil {
		return nil, err
	}
	return old, nil
}

func (r *SessionRepo) Stats(ctx context.Context) (models.StoreStats, error) {
	var st models.StoreStats
	var err error
	if st.SessionsCount, err = r.sessions.CountDocuments(ctx, bson.M{}); err != nil {
		return st, err
	}
	if st.EvaluationsCount, err = r.evaluations.CountDocuments(ctx, bson.M{}); err != nil {
		return st, err
	}

	var dbStats struct {
		DataSize float64 `bson:"dataSize"`
	}
	cmd := bson.D{{Key: "dbStats", Value: 1}, {Key: "scale", Value: 1024 * 1024}}
	if err := r.db.RunCommand(ctx, cmd).Decode(&dbStats); err == nil {
		st.TotalSizeMB = utils.Round(dbStats.DataSize, 2)
	}
	st.StorageDir = "mongodb://" + r.db.Name()
	return st, nil
}
