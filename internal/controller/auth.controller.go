package controller

import (
	"net/http"

	"github.com/sharetube/watchsync/internal/auth"
	"github.com/sharetube/watchsync/pkg/rest"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50,username"`
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (c *Controller) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	creds, err := c.accounts.Register(r.Context(), &auth.RegisterParams{
		Username: req.Username,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.logger.InfoContext(r.Context(), "user registered", "user_id", creds.User.ID)

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": creds})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Controller) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !c.readRequest(w, r, &req) {
		return
	}

	creds, err := c.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": creds})
}

func (c *Controller) getProfile(w http.ResponseWriter, r *http.Request) {
	identity := c.getIdentityFromCtx(r.Context())

	profile, err := c.accounts.Profile(r.Context(), identity.UserID)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": profile})
}
