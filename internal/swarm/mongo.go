package swarm

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Mongo archive for the explorer. Best effort: the ledger is authoritative,
// the archive is a convenience mirror.

type epochArchiveDoc struct {
	Snapshot EpochSealSnapshot `bson:",inline"`
	Cid      string            `bson:"cid"`
	Archived int64             `bson:"archived"`
}

type stateArchiveDoc struct {
	Snapshot StateSnapshot `bson:",inline"`
	Cid      string        `bson:"cid"`
	Archived int64         `bson:"archived"`
}

func (c *Core) archiveEpoch(snap *EpochSealSnapshot, cid string) {
	if c.Mongo == nil {
		return
	}
	col := c.Mongo.Database("swarmpool").Collection("epochs")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, _ = col.InsertOne(ctx, epochArchiveDoc{Snapshot: *snap, Cid: cid, Archived: c.now().Unix()})
}

func (c *Core) archiveState(snap *StateSnapshot, cid string) {
	if c.Mongo == nil {
		return
	}
	col := c.Mongo.Database("swarmpool").Collection("pool_state")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	filter := bson.M{"pool": snap.Pool}
	doc := stateArchiveDoc{Snapshot: *snap, Cid: cid, Archived: c.now().Unix()}
	_, _ = col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
}
