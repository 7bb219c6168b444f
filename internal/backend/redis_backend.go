package backend

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/driver-dispatch/internal/models"
)

const (
	geoKey       = "drivers_geo"
	requestsKey  = "requests:available"
	claimTimeout = 24 * time.Hour
)

// RedisBackend implements the Backend API against Redis for dev/integration
// rigs: driver presence via GEOADD plus a session hash, available requests
// as JSON values in a hash, and accept-claims as SETNX keys.
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(addr, password string) *RedisBackend {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisBackend{client: c}
}

func (r *RedisBackend) SetDriverOnline(ctx context.Context, driverID string, loc models.Coord) (string, error) {
	sessionID := newSessionID()
	if _, err := r.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: loc.Lon, Latitude: loc.Lat, Name: driverID}).Result(); err != nil {
		return "", err
	}
	err := r.client.HSet(ctx, sessionKey(driverID), map[string]interface{}{
		"session_id": sessionID,
		"online":     "true",
		"updated":    time.Now().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return "", err
	}
	return sessionID, nil
}

func (r *RedisBackend) SetDriverOffline(ctx context.Context, driverID string) error {
	if err := r.client.ZRem(ctx, geoKey, driverID).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, sessionKey(driverID), map[string]interface{}{
		"online":  "false",
		"updated": time.Now().Format(time.RFC3339),
	}).Err()
}

func (r *RedisBackend) UpdateDriverHeartbeat(ctx context.Context, driverID string, loc models.Coord) error {
	if _, err := r.client.GeoAdd(ctx, geoKey, &redis.GeoLocation{Longitude: loc.Lon, Latitude: loc.Lat, Name: driverID}).Result(); err != nil {
		return err
	}
	return r.client.HSet(ctx, sessionKey(driverID), "updated", time.Now().Format(time.RFC3339)).Err()
}

func (r *RedisBackend) GetAvailableRequests(ctx context.Context) ([]models.PickupRequest, error) {
	vals, err := r.client.HGetAll(ctx, requestsKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.PickupRequest, 0, len(vals))
	for id, raw := range vals {
		var req models.PickupRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue
		}
		if claimed, _ := r.client.Exists(ctx, claimKey(id)).Result(); claimed > 0 {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

func (r *RedisBackend) CheckExpiredRequests(ctx context.Context) (int, error) {
	vals, err := r.client.HGetAll(ctx, requestsKey).Result()
	if err != nil {
		return 0, err
	}
	now := time.Now()
	n := 0
	for id, raw := range vals {
		var req models.PickupRequest
		if err := json.Unmarshal([]byte(raw), &req); err != nil {
			continue
		}
		if !req.ExpiresAt.IsZero() && now.After(req.ExpiresAt) {
			if err := r.client.HDel(ctx, requestsKey, id).Err(); err == nil {
				n++
			}
		}
	}
	return n, nil
}

func (r *RedisBackend) AcceptRequest(ctx context.Context, requestID string) error {
	ok, err := r.client.SetNX(ctx, claimKey(requestID), strconv.FormatInt(time.Now().Unix(), 10), claimTimeout).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadyTaken
	}
	return r.client.HDel(ctx, requestsKey, requestID).Err()
}

func (r *RedisBackend) UpdateDriverLocation(ctx context.Context, jobID string, loc models.Coord) error {
	b, _ := json.Marshal(loc)
	return r.client.RPush(ctx, "job:track:"+jobID, b).Err()
}

func sessionKey(driverID string) string { return "driver:session:" + driverID }
func claimKey(requestID string) string  { return "request:claim:" + requestID }
