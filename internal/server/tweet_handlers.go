package server

import (
	"fmt"
	"io"
	"strings"

	"murmur/internal/models"
	"murmur/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetTweets handles GET /api/tweets
func (s *Server) GetTweets(c *fiber.Ctx) error {
	tweets, err := s.tweetService.ListTweets(c.UserContext())
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tweets)
}

// GetUserTweets handles GET /api/tweets/user/:id
func (s *Server) GetUserTweets(c *fiber.Ctx) error {
	userID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	tweets, err := s.tweetService.ListUserTweets(c.UserContext(), userID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tweets)
}

// CreateTweet handles POST /api/tweets. It accepts multipart form data with a
// "content" field and an optional "image" file, or a JSON body with content.
func (s *Server) CreateTweet(c *fiber.Ctx) error {
	var in service.CreateTweetInput

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in.Content = c.FormValue("content")
		image, err := s.readImage(c)
		if err != nil {
			return respondServiceError(c, err)
		}
		in.Image = image
	} else if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return invalidBody(c)
		}
	}

	tweet, err := s.tweetService.CreateTweet(c.UserContext(), currentUser(c), in)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(tweet)
}

// readImage returns the optional "image" form file, or nil when none was sent.
func (s *Server) readImage(c *fiber.Ctx) (*service.UploadInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, models.NewValidationError(models.ReasonInvalidField, "Invalid multipart form")
	}
	files := form.File["image"]
	if len(files) == 0 {
		return nil, nil
	}
	file := files[0]
	if file.Size > s.uploads.MaxBytes() {
		return nil, models.NewValidationError(models.ReasonInvalidImage,
			fmt.Sprintf("File too large (max %dMB)", s.uploads.MaxBytes()/(1024*1024)))
	}

	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError(models.ReasonInvalidImage, "Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError(models.ReasonInvalidImage, "Unable to read uploaded file")
	}
	return &service.UploadInput{Filename: file.Filename, Content: content}, nil
}

// LikeTweet handles POST /api/tweets/:id/like. Calling it twice restores the
// original like set.
func (s *Server) LikeTweet(c *fiber.Ctx) error {
	tweetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	tweet, err := s.tweetService.ToggleLike(c.UserContext(), tweetID, currentUser(c).ID)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tweet)
}

// CommentOnTweet handles POST /api/tweets/:id/comment
func (s *Server) CommentOnTweet(c *fiber.Ctx) error {
	tweetID, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	var req service.AddCommentInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c)
		}
	}

	tweet, err := s.tweetService.AddComment(c.UserContext(), tweetID, currentUser(c), req)
	if err != nil {
		return respondServiceError(c, err)
	}
	return c.JSON(tweet)
}
