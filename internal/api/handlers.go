package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teris-io/shortid"

	"github.com/jpratt/chatterd/internal/auth"
	"github.com/jpratt/chatterd/internal/gateway"
	"github.com/jpratt/chatterd/internal/types"
)

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func (s *App) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

func (s *App) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.users.Create(req.Email, req.Password)
	if err != nil {
		s.log.Println("register:", err)
		errResp := fromError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, user)
}

func (s *App) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.users.Authenticate(req.Email, req.Password)
	if err != nil {
		s.log.Println("login:", err)
		errResp := fromError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	token, err := auth.NewToken(user.Id, user.Email, s.signingKey, auth.DefaultTokenTTL)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, LoginResponse{
		Token: token,
		User:  user,
	})
}

func (s *App) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("healthz:", err)
		errResp := NewServiceUnavailableError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *App) serveWs(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	connId, err := shortid.Generate()
	if err != nil {
		s.log.Println("generate connection id:", err)
		conn.Close()
		return
	}

	client := gateway.NewClient(connId, r.Header.Get("Authorization"), conn, s.gw, s.log)
	if err := s.gw.Connect(client); err != nil {
		s.log.Printf("connection %s rejected: %v", connId, err)
		// the client never entered the gateway, so report and close here
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		conn.WriteJSON(&gateway.ServerEvent{Event: gateway.EventException, Data: "authentication failed"})
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
