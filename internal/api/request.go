package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DateLayout is the calendar date format used in paths, queries and bodies.
const DateLayout = "2006-01-02"

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, value, time.UTC)
}

func formatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// queryDate reads an optional YYYY-MM-DD query parameter, falling back to def.
func queryDate(c *gin.Context, name string, def time.Time) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	date, err := parseDate(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("Invalid %s, expected YYYY-MM-DD.", name))
		return time.Time{}, false
	}
	return date, true
}

// parseObjectIDs converts hex ids, reporting the first malformed one.
func parseObjectIDs(raw []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func hexOrNil(id *primitive.ObjectID) *string {
	if id == nil {
		return nil
	}
	hex := id.Hex()
	return &hex
}

func hexList(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
