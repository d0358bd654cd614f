// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ZahraKhan-147/study-bot/internal/model"
	"github.com/ZahraKhan-147/study-bot/pkg/lock"
	"github.com/ZahraKhan-147/study-bot/pkg/log"
)

// ErrConversationNotFound 表示给定的对话 ID 不存在。
var ErrConversationNotFound = errors.New("conversation not found")

// DefaultRecentWindow 是提供给模型作为上下文的尾部窗口大小。
const DefaultRecentWindow = 5

// 缓存的窗口 TTL，与落库数据相比缓存只是加速层，可安全过期。
const recentCacheTTL = 7 * 24 * time.Hour

// ConversationRepository 定义了对话记录的存取接口。
type ConversationRepository interface {
	// GetOrCreate 解析对话 ID：ID 为空、格式非法或不存在时创建并返回一个新对话，
	// 有效 ID 返回已有记录。该操作对缺失/非法 ID 不报错（静默回退到新建）。
	GetOrCreate(ctx context.Context, id string) (*model.Conversation, error)
	// FindByID 返回完整对话记录，不存在时返回 ErrConversationNotFound。
	FindByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error)
	// AppendMessage 向对话尾部追加一条消息，时间戳在此处写入。
	AppendMessage(ctx context.Context, id primitive.ObjectID, role model.Role, content string) error
	// RecentMessages 按时间顺序返回最近 limit 条消息（窗口内最旧的在前）。
	RecentMessages(ctx context.Context, id primitive.ObjectID, limit int) ([]model.Message, error)
}

type mongoConversationRepository struct {
	coll *mongo.Collection
	// cache 为 nil 时禁用窗口缓存，行为完全等价。
	cache *redis.Client
	// locks 按对话 ID 串行化追加与缓存回填：未读到缓存的读会从 Mongo 取快照
	// 后写回缓存，若与追加并发交错，可能把追加前的旧窗口重新写入刚失效的
	// 缓存键。两者互斥后，回填的快照总是反映其之前的全部追加。
	locks *lock.KeyedMutex
}

// NewConversationRepository 创建一个 MongoDB 实现的 ConversationRepository。
// cache 可为 nil。
func NewConversationRepository(coll *mongo.Collection, cache *redis.Client) ConversationRepository {
	return &mongoConversationRepository{coll: coll, cache: cache, locks: lock.NewKeyedMutex()}
}

func (r *mongoConversationRepository) GetOrCreate(ctx context.Context, id string) (*model.Conversation, error) {
	if id != "" {
		oid, err := primitive.ObjectIDFromHex(id)
		if err == nil {
			var conv model.Conversation
			findErr := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv)
			if findErr == nil {
				return &conv, nil
			}
			if !errors.Is(findErr, mongo.ErrNoDocuments) {
				// 查询故障也回退到新建，与缺失 ID 同样处理，仅留日志
				log.Warnf("查询对话失败，回退到新建: id=%s, err=%v", id, findErr)
			}
		}
	}

	conv := &model.Conversation{
		Messages:  []model.Message{},
		CreatedAt: time.Now(),
	}
	res, err := r.coll.InsertOne(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	conv.ID = res.InsertedID.(primitive.ObjectID)
	return conv, nil
}

func (r *mongoConversationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}
	return &conv, nil
}

func (r *mongoConversationRepository) AppendMessage(ctx context.Context, id primitive.ObjectID, role model.Role, content string) error {
	if r.cache != nil {
		key := id.Hex()
		r.locks.Lock(key)
		defer r.locks.Unlock(key)
	}

	msg := model.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$push": bson.M{"messages": msg}},
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}

	if r.cache != nil {
		if err := r.cache.Del(ctx, recentCacheKey(id)).Err(); err != nil {
			log.Warnf("清除窗口缓存失败: id=%s, err=%v", id.Hex(), err)
		}
	}
	return nil
}

func (r *mongoConversationRepository) RecentMessages(ctx context.Context, id primitive.ObjectID, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultRecentWindow
	}

	// 缓存只覆盖默认窗口，其他 limit 直接查库
	useCache := r.cache != nil && limit == DefaultRecentWindow
	if useCache {
		if msgs, ok := r.cachedRecent(ctx, id); ok {
			return msgs, nil
		}
		// 未命中：取锁后重查再回填，避免与追加交错写回旧窗口
		key := id.Hex()
		r.locks.Lock(key)
		defer r.locks.Unlock(key)
		if msgs, ok := r.cachedRecent(ctx, id); ok {
			return msgs, nil
		}
	}

	var conv model.Conversation
	opts := options.FindOne().SetProjection(bson.M{"messages": bson.M{"$slice": -limit}})
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	if useCache {
		r.storeRecent(ctx, id, conv.Messages)
	}
	return conv.Messages, nil
}

func (r *mongoConversationRepository) cachedRecent(ctx context.Context, id primitive.ObjectID) ([]model.Message, bool) {
	jsonData, err := r.cache.Get(ctx, recentCacheKey(id)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warnf("读取窗口缓存失败: id=%s, err=%v", id.Hex(), err)
		return nil, false
	}
	var msgs []model.Message
	if err := json.Unmarshal([]byte(jsonData), &msgs); err != nil {
		log.Warnf("解析窗口缓存失败: id=%s, err=%v", id.Hex(), err)
		return nil, false
	}
	return msgs, true
}

func (r *mongoConversationRepository) storeRecent(ctx context.Context, id primitive.ObjectID, msgs []model.Message) {
	jsonData, err := json.Marshal(msgs)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, recentCacheKey(id), jsonData, recentCacheTTL).Err(); err != nil {
		log.Warnf("写入窗口缓存失败: id=%s, err=%v", id.Hex(), err)
	}
}

func recentCacheKey(id primitive.ObjectID) string {
	return fmt.Sprintf("conversation:%s:recent", id.Hex())
}
