package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const delegatePayload = `{
  "session": {
    "id": "sess-1",
    "userId": "user-1",
    "token": "tok",
    "expiresAt": "2030-01-02T03:04:05Z",
    "createdAt": "2029-12-26T03:04:05Z",
    "updatedAt": "2029-12-26T03:04:05Z",
    "ipAddress": "10.0.0.1"
  },
  "user": {
    "id": "user-1",
    "email": "ada@example.edu",
    "name": "Ada",
    "emailVerified": true,
    "createdAt": "2029-01-01T00:00:00Z",
    "updatedAt": "2029-01-01T00:00:00Z",
    "studentNumber": "S-100",
    "role": "STUDENT"
  }
}`

func TestSessionDecodesAdditionalFields(t *testing.T) {
	var s Session[studentFields]
	require.NoError(t, json.Unmarshal([]byte(delegatePayload), &s))

	assert.Equal(t, "sess-1", s.Session.ID)
	assert.Equal(t, "10.0.0.1", s.Session.IPAddress)
	assert.Equal(t, "ada@example.edu", s.User.Email)
	assert.True(t, s.User.EmailVerified)
	assert.Equal(t, studentFields{StudentNumber: "S-100", Role: "STUDENT"}, s.Fields)
}

func TestSessionWithoutFieldsIgnoresExtras(t *testing.T) {
	var s Session[NoFields]
	require.NoError(t, json.Unmarshal([]byte(delegatePayload), &s))
	assert.Equal(t, "user-1", s.User.ID)
}

func TestSessionMarshalMergesFieldsIntoUser(t *testing.T) {
	var s Session[studentFields]
	require.NoError(t, json.Unmarshal([]byte(delegatePayload), &s))

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var shape struct {
		Session map[string]any `json:"session"`
		User    map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.Equal(t, "sess-1", shape.Session["id"])
	assert.Equal(t, "Ada", shape.User["name"])
	assert.Equal(t, "S-100", shape.User["studentNumber"])
}

func TestSessionMarshalCoreFieldsWin(t *testing.T) {
	type clashing struct {
		Email string `json:"email"`
	}
	s := Session[clashing]{
		User:   User{Email: "real@example.edu"},
		Fields: clashing{Email: "shadow@example.edu"},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	var shape struct {
		User map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.Equal(t, "real@example.edu", shape.User["email"])
}

func TestSessionNullUser(t *testing.T) {
	var s Session[studentFields]
	require.NoError(t, json.Unmarshal([]byte(`{"session":{"id":"x"},"user":null}`), &s))
	assert.Equal(t, "x", s.Session.ID)
	assert.Empty(t, s.User.ID)
}

func TestSessionBadFieldType(t *testing.T) {
	var s Session[studentFields]
	err := json.Unmarshal([]byte(`{"session":{},"user":{"id":"u","role":7}}`), &s)
	assert.Error(t, err)
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &Session[NoFields]{Session: Record{ExpiresAt: now.Add(time.Minute)}}
	assert.False(t, s.Expired(now))
	assert.True(t, s.Expired(now.Add(time.Minute)))

	noExpiry := &Session[NoFields]{}
	assert.False(t, noExpiry.Expired(now))
}
