package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedisCache_RequiresAddress(t *testing.T) {
	_, err := NewRedisCache(&RedisConfig{}, nil)
	assert.Error(t, err)

	_, err = NewRedisCache(nil, nil)
	assert.Error(t, err)
}
