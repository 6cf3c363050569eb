package server

import (
	"errors"
	"net/http"

	"spy-game/internal/db"
	"spy-game/internal/game"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type createCategoryRequest struct {
	Title string   `json:"title" binding:"required,max=64"`
	Words []string `json:"type" binding:"required"`
}

type createRoomRequest struct {
	TypeID *uint `json:"type_id" binding:"required"`
}

type createRoomWithOwnerRequest struct {
	Username string `json:"username" binding:"required,username"`
	TypeID   *uint  `json:"type_id"`
}

type createUserRequest struct {
	Username string `json:"username" binding:"required,username"`
	RoomID   string `json:"rooms_id" binding:"required,roomcode"`
}

type recordGameRequest struct {
	SpyID   string `json:"spy_id" binding:"required,uuid"`
	Keyword string `json:"keyword" binding:"required,max=64"`
}

type roomURI struct {
	ID string `uri:"id" binding:"required,roomcode"`
}

var (
	categoryMessages = bindMessages{
		"Title": {"required": "title is required", "max": "title must be 64 characters or fewer"},
		"Words": {"required": "type must be an array of words"},
	}
	roomMessages = bindMessages{
		"TypeID": {"required": "type_id is required"},
	}
	userMessages = bindMessages{
		"Username": {"required": "username is required", "username": "username contains unsupported characters"},
		"RoomID":   {"required": "rooms_id is required", "roomcode": "rooms_id is not a room code"},
	}
	gameMessages = bindMessages{
		"SpyID":   {"required": "spy_id is required", "uuid": "spy_id must be a user id"},
		"Keyword": {"required": "keyword is required", "max": "keyword must be 64 characters or fewer"},
	}
)

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleListCategories(c *gin.Context) {
	categories, err := s.repo.Categories(c.Request.Context())
	if err != nil {
		s.storeFailure(c, err, "list categories")
		return
	}
	c.JSON(http.StatusOK, game.CategoryViews(categories))
}

func (s *Server) handleCreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if !bindJSON(c, &req, categoryMessages, "title and type are required") {
		return
	}
	category, err := s.repo.CreateCategory(c.Request.Context(), req.Title, db.CleanWords(req.Words))
	if errors.Is(err, db.ErrDuplicate) {
		c.JSON(http.StatusConflict, gin.H{"error": "category already exists"})
		return
	}
	if err != nil {
		s.storeFailure(c, err, "create category")
		return
	}
	log.Info().Uint("category_id", category.ID).Str("title", category.Title).Int("words", len(category.Words)).Msg("category created")
	c.JSON(http.StatusCreated, category)
}

func (s *Server) handleCreateRoom(c *gin.Context) {
	var req createRoomRequest
	if !bindJSON(c, &req, roomMessages, "") {
		return
	}
	room, err := s.repo.CreateRoom(c.Request.Context(), req.TypeID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "type not found"})
		return
	}
	if err != nil {
		s.storeFailure(c, err, "create room")
		return
	}
	log.Info().Str("room_id", room.ID).Msg("room created")
	c.JSON(http.StatusCreated, room)
}

func (s *Server) handleGetRoom(c *gin.Context) {
	var uri roomURI
	if !bindURI(c, &uri) {
		return
	}
	room, err := s.repo.RoomByID(c.Request.Context(), uri.ID)
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	if err != nil {
		s.storeFailure(c, err, "get room")
		return
	}
	c.JSON(http.StatusOK, room)
}

func (s *Server) handleCreateRoomWithOwner(c *gin.Context) {
	var req createRoomWithOwnerRequest
	if !bindJSON(c, &req, userMessages, "") {
		return
	}
	username, err := validateUsername(req.Username, s.cfg.MaxUsernameLength)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	room, owner, err := s.repo.CreateRoomWithOwner(c.Request.Context(), username, req.TypeID)
	switch {
	case errors.Is(err, db.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "type not found"})
		return
	case err != nil:
		s.storeFailure(c, err, "create room with owner")
		return
	}
	log.Info().Str("room_id", room.ID).Str("owner", owner.Username).Msg("room created")
	c.JSON(http.StatusCreated, gin.H{"room": room, "user": owner})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, &req, userMessages, "") {
		return
	}
	username, err := validateUsername(req.Username, s.cfg.MaxUsernameLength)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := s.repo.CreateUser(c.Request.Context(), username, req.RoomID)
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	case errors.Is(err, db.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists in this room"})
		return
	case err != nil:
		s.storeFailure(c, err, "create user")
		return
	}
	log.Info().Str("room_id", *user.RoomID).Str("username", user.Username).Msg("user registered")
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleRecordGame(c *gin.Context) {
	var req recordGameRequest
	if !bindJSON(c, &req, gameMessages, "") {
		return
	}
	record, err := s.repo.RecordRoundAssignment(c.Request.Context(), req.SpyID, req.Keyword)
	if err != nil {
		s.storeFailure(c, err, "record game")
		return
	}
	c.JSON(http.StatusCreated, record)
}

func (s *Server) storeFailure(c *gin.Context, err error, action string) {
	log.Error().Err(err).Str("action", action).Msg("store request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}
