package cache

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoCache(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()

	mt.Run("hit", func(mt *mtest.T) {
		c := NewMongoCacheFromCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "image:abc"},
			{Key: "data", Value: []byte("png")},
			{Key: "expires_at", Value: time.Now().Add(time.Hour)},
		}))
		data, hit, err := c.Get(ctx, "image:abc")
		if err != nil || !hit || string(data) != "png" {
			t.Errorf("Get = %q, %v, %v; want png hit", data, hit, err)
		}
	})

	mt.Run("miss", func(mt *mtest.T) {
		c := NewMongoCacheFromCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
			t.Errorf("Get(missing) = hit %v, err %v; want miss", hit, err)
		}
	})

	mt.Run("expired entry misses", func(mt *mtest.T) {
		c := NewMongoCacheFromCollection(mt.Coll)
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "old"},
			{Key: "data", Value: []byte("stale")},
			{Key: "expires_at", Value: time.Now().Add(-time.Minute)},
		}))
		if _, hit, err := c.Get(ctx, "old"); err != nil || hit {
			t.Errorf("Get(expired) = hit %v, err %v; want miss", hit, err)
		}
	})

	mt.Run("set upserts", func(mt *mtest.T) {
		c := NewMongoCacheFromCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))
		if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if ev := mt.GetStartedEvent(); ev == nil || ev.CommandName != "update" {
			t.Errorf("started event = %v, want update", ev)
		}
	})

	mt.Run("clear deletes everything", func(mt *mtest.T) {
		c := NewMongoCacheFromCollection(mt.Coll)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}))
		if err := Clear(ctx, c); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if ev := mt.GetStartedEvent(); ev == nil || ev.CommandName != "delete" {
			t.Errorf("started event = %v, want delete", ev)
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close on a borrowed client: %v", err)
		}
	})
}
