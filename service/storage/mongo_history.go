package storage

import (
	"context"
	"time"

	"PRelay/data/database/mgo/mongoutil"
	"PRelay/logger"
	"PRelay/module/chat/model"
	"PRelay/service/mgo"
	"PRelay/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoHistory messages 集合；连接由 mgo.MongoManager 在后台维护（断线重连）
type MongoHistory struct {
	mgr *mgo.MongoManager
}

func NewMongoHistory(ctx context.Context, uri string, opt Options) (*MongoHistory, error) {
	cfg := &mongoutil.Config{Uri: uri, Database: opt.Database}
	if err := cfg.ValidateAndSetDefaults(); err != nil {
		return nil, errs.ErrStoreConfig.WrapMsg(err.Error())
	}
	mgr := mgo.NewManager(cfg)
	mgr.OnConnect = ensureMongoIndexes
	mgr.StartAsync(context.Background())

	// 首次连接在 Timeout 内未就绪也不失败：后台继续重连，期间 Append 返回 StoreError
	wctx, cancel := context.WithTimeout(ctx, opt.Timeout)
	defer cancel()
	if err := mgr.WaitReady(wctx); err != nil {
		logger.Warn("[history] mongo not ready yet, continuing in background", zap.Error(err))
	}
	return &MongoHistory{mgr: mgr}, nil
}

func ensureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(model.MsgTableName).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "receiver", Value: 1}, {Key: "timestamp", Value: -1}}},
	})
	return errs.Wrap(err)
}

func (s *MongoHistory) coll() (*mongo.Collection, error) {
	db, ok := s.mgr.TryGetDB()
	if !ok {
		return nil, errs.ErrStore.WrapMsg("mongo not connected")
	}
	return db.Collection(model.MsgTableName), nil
}

func (s *MongoHistory) Append(ctx context.Context, msg model.Message) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	// mongo 只保存到毫秒
	msg.Timestamp = msg.Timestamp.Truncate(time.Millisecond)
	if _, err := c.InsertOne(ctx, msg); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return errs.ErrStore.WrapMsg(err.Error(), "id", msg.ID)
	}
	return nil
}

func (s *MongoHistory) Query(ctx context.Context, username string, limit int) ([]model.Message, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	filter := bson.M{"$or": bson.A{
		bson.M{"sender": username},
		bson.M{"receiver": username},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
	}
	out := make([]model.Message, 0, limit)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
	}
	return reverse(out), nil
}

func (s *MongoHistory) Close() error {
	return s.mgr.Close()
}
