package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"inkwell/internal/auth"
	"inkwell/internal/model"
	"inkwell/internal/service"
)

func (s *Server) listArticles(w http.ResponseWriter, r *http.Request) {
	take, err := queryInt(r, "take")
	if err != nil {
		s.respondError(w, err)
		return
	}
	skip, err := queryInt(r, "skip")
	if err != nil {
		s.respondError(w, err)
		return
	}

	articles, err := s.articles.List(r.Context(), take, skip)
	s.respond(w, http.StatusOK, articles, err)
}

func (s *Server) getArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	article, err := s.articles.Get(r.Context(), id)
	s.respond(w, http.StatusOK, article, err)
}

func (s *Server) listUserArticles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.users.Get(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	articles, err := s.articles.ListByAuthor(r.Context(), id)
	s.respond(w, http.StatusOK, articles, err)
}

func (s *Server) createArticle(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var input service.CreateArticleInput
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	article, err := s.articles.Create(r.Context(), input, user.ID)
	s.respond(w, http.StatusCreated, article, err)
}

func (s *Server) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.currentUser(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	var input service.UpdateArticleInput
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	article, err := s.articles.Update(r.Context(), id, input, user.ID)
	s.respond(w, http.StatusOK, article, err)
}

func (s *Server) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.currentUser(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	article, err := s.articles.Delete(r.Context(), id, user.ID)
	s.respond(w, http.StatusOK, article, err)
}

type categoryInput struct {
	Name *string `json:"name"`
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.categories.List(r.Context())
	s.respond(w, http.StatusOK, categories, err)
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	category, err := s.categories.Get(r.Context(), id)
	s.respond(w, http.StatusOK, category, err)
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	if _, err := s.currentUser(r); err != nil {
		s.respondError(w, err)
		return
	}
	var input categoryInput
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	name := ""
	if input.Name != nil {
		name = *input.Name
	}
	category, err := s.categories.Create(r.Context(), name)
	s.respond(w, http.StatusCreated, category, err)
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.currentUser(r); err != nil {
		s.respondError(w, err)
		return
	}
	var input categoryInput
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	category, err := s.categories.Update(r.Context(), id, input.Name)
	s.respond(w, http.StatusOK, category, err)
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if _, err := s.currentUser(r); err != nil {
		s.respondError(w, err)
		return
	}
	category, err := s.categories.Delete(r.Context(), id)
	s.respond(w, http.StatusOK, category, err)
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	s.respond(w, http.StatusOK, users, err)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.users.Get(r.Context(), id)
	s.respond(w, http.StatusOK, user, err)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	s.respond(w, http.StatusOK, user, err)
}

// signUp needs a token but not a profile: it is how the profile is made.
func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	principal := auth.FromContext(r.Context())
	if principal == nil {
		s.respondError(w, service.Unauthorized("Authentication required"))
		return
	}
	var input struct {
		Name string `json:"name"`
	}
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.users.SignUp(r.Context(), principal.Subject, principal.Email, input.Name)
	s.respond(w, http.StatusOK, user, err)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.requireSelf(r, id, "edit this user"); err != nil {
		s.respondError(w, err)
		return
	}
	var input service.UpdateUserInput
	if err := decode(r, &input); err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.users.Update(r.Context(), id, input)
	s.respond(w, http.StatusOK, user, err)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.respondError(w, err)
		return
	}
	if err := s.requireSelf(r, id, "delete this user"); err != nil {
		s.respondError(w, err)
		return
	}
	user, err := s.users.Delete(r.Context(), id)
	s.respond(w, http.StatusOK, user, err)
}

// currentUser resolves the caller's profile from the token subject.
func (s *Server) currentUser(r *http.Request) (*model.User, error) {
	principal := auth.FromContext(r.Context())
	if principal == nil {
		return nil, service.Unauthorized("Authentication required")
	}
	user, err := s.users.GetBySub(r.Context(), principal.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, service.Unauthorized("User profile not found, sign up first")
	}
	return user, nil
}

func (s *Server) requireSelf(r *http.Request, id int64, action string) error {
	user, err := s.currentUser(r)
	if err != nil {
		return err
	}
	if user.ID != id {
		return service.Forbidden(action)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, service.Invalid("id", "ID must be a positive integer")
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, service.Invalid(name, "Must be an integer")
	}
	return n, nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return service.Invalid("body", "Invalid request body: "+err.Error())
	}
	return nil
}

func (s *Server) respond(w http.ResponseWriter, status int, data any, err error) {
	if err != nil {
		s.respondError(w, err)
		return
	}
	s.respondJSON(w, status, data)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

// respondError maps domain errors to their status. Anything else is logged and
// reported as a bare 500.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var status int
	switch service.CodeOf(err) {
	case service.CodeNotFound:
		status = http.StatusNotFound
	case service.CodeValidation:
		status = http.StatusBadRequest
	case service.CodeForbidden:
		status = http.StatusForbidden
	case service.CodeUnauthorized:
		status = http.StatusUnauthorized
	case service.CodeConflict:
		status = http.StatusConflict
	default:
		s.logger.Error("Request failed", zap.Error(err))
		s.respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error": map[string]any{"code": "INTERNAL", "message": "Internal server error"},
		})
		return
	}
	s.respondJSON(w, status, map[string]any{"error": err})
}
