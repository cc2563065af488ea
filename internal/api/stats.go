package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"guildstats/internal/repository"
	"guildstats/internal/source"
)

const (
	defaultTopLimit = 5
	maxTopLimit     = 20
	defaultWindow   = 30 // days
)

func (r *Router) setupStatsRoutes() {
	v1 := r.Engine.Group("/api/v1")

	v1.GET("/guilds/:id/activity", r.handleActivity(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{GuildID: id}
	}))
	v1.GET("/guilds/:id/top-users", r.handleTopUsers(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{GuildID: id}
	}))
	v1.GET("/guilds/:id/top-channels", r.handleTopChannels(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{GuildID: id}
	}))

	v1.GET("/channels/:id/activity", r.handleActivity(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{ChannelID: id}
	}))
	v1.GET("/channels/:id/top-users", r.handleTopUsers(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{ChannelID: id}
	}))

	v1.GET("/users/:id/activity", r.handleActivity(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{AuthorID: id}
	}))
	v1.GET("/users/:id/top-channels", r.handleTopChannels(func(id int64) repository.MessageFilter {
		return repository.MessageFilter{AuthorID: id}
	}))
}

func (r *Router) handleActivity(scope func(int64) repository.MessageFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, from, to, _, ok := parseQuery(c, scope)
		if !ok {
			return
		}
		activity, err := r.Stats.Activity(c.Request.Context(), filter, from, to)
		if err != nil {
			r.Logger.LogError(err, "activity query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, activity)
	}
}

func (r *Router) handleTopUsers(scope func(int64) repository.MessageFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, from, to, limit, ok := parseQuery(c, scope)
		if !ok {
			return
		}
		ranked, err := r.Stats.TopUsers(c.Request.Context(), filter, from, to, limit)
		if err != nil {
			r.Logger.LogError(err, "top users query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": ranked})
	}
}

func (r *Router) handleTopChannels(scope func(int64) repository.MessageFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, from, to, limit, ok := parseQuery(c, scope)
		if !ok {
			return
		}
		ranked, err := r.Stats.TopChannels(c.Request.Context(), filter, from, to, limit)
		if err != nil {
			r.Logger.LogError(err, "top channels query failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": ranked})
	}
}

// parseQuery resolves the :id path segment, the from/to window and the limit.
// Reports false after writing the error response itself.
func parseQuery(c *gin.Context, scope func(int64) repository.MessageFilter) (repository.MessageFilter, time.Time, time.Time, int, bool) {
	var zero repository.MessageFilter

	id, err := source.ParseSnowflake(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return zero, time.Time{}, time.Time{}, 0, false
	}
	filter := scope(id)

	// Optional guild narrowing for user and channel scopes.
	if raw := c.Query("guild"); raw != "" {
		guildID, err := source.ParseSnowflake(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid guild"})
			return zero, time.Time{}, time.Time{}, 0, false
		}
		filter.GuildID = guildID
	}

	now := time.Now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := to.AddDate(0, 0, -(defaultWindow - 1))

	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date, want YYYY-MM-DD"})
			return zero, time.Time{}, time.Time{}, 0, false
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date, want YYYY-MM-DD"})
			return zero, time.Time{}, time.Time{}, 0, false
		}
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is before from"})
		return zero, time.Time{}, time.Time{}, 0, false
	}

	limit := defaultTopLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTopLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return zero, time.Time{}, time.Time{}, 0, false
		}
		limit = parsed
	}

	return filter, from, to, limit, true
}
