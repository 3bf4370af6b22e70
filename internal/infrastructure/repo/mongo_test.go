package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"gmart-backend/internal/domain"
)

func TestMongo_MarkPaid(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("transitions pending order", func(mt *mtest.T) {
		r := newMongoRepo(mt.DB)
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: "o1"},
				{Key: "external_order_id", Value: "PP-1"},
				{Key: "amount_total", Value: int64(1000)},
				{Key: "status", Value: "paid"},
			}},
		})
		o, err := r.MarkPaid(context.Background(), "PP-1", time.Now())
		require.NoError(mt, err)
		require.NotNil(mt, o)
		assert.Equal(mt, domain.OrderPaid, o.Status)
		assert.Equal(mt, int64(1000), o.AmountTotal)
	})

	mt.Run("missing order", func(mt *mtest.T) {
		r := newMongoRepo(mt.DB)
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "gmart.orders", mtest.FirstBatch),
		)
		o, err := r.MarkPaid(context.Background(), "PP-404", time.Now())
		require.NoError(mt, err)
		assert.Nil(mt, o)
	})
}

func TestMongo_GetUserByEmail(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		r := newMongoRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(1, "gmart.users", mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "u1"},
			{Key: "email", Value: "ada@example.com"},
			{Key: "role", Value: "admin"},
		}))
		u, ok := r.GetUserByEmail(context.Background(), "ADA@example.com")
		require.True(mt, ok)
		assert.Equal(mt, "u1", u.UserID)
		assert.Equal(mt, domain.RoleAdmin, u.Role)
	})
}
