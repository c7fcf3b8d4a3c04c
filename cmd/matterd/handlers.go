package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/daniacca/mattercore/internal/matter"
	"github.com/daniacca/mattercore/internal/matter/notifiers"
	"github.com/daniacca/mattercore/pkg/client"
)

// apiError carries an HTTP status out of a world transaction.
type apiError struct {
	code int
	msg  string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(msg string) error { return &apiError{code: http.StatusBadRequest, msg: msg} }
func notFound(msg string) error   { return &apiError{code: http.StatusNotFound, msg: msg} }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	var ae *apiError
	if errors.As(err, &ae) {
		http.Error(w, ae.msg, ae.code)
		return
	}
	s.logger.Errorf("request failed: error=%v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid json: " + err.Error())
	}
	return nil
}

// world resolves the {world} path value.
func (s *Server) world(w http.ResponseWriter, r *http.Request) (*matter.WorldState, bool) {
	ws, ok := s.manager.GetWorld(matter.WorldID(r.PathValue("world")))
	if !ok {
		http.Error(w, "world not found", http.StatusNotFound)
	}
	return ws, ok
}

// live parses a ref and checks it addresses a live instance.
func live(g *matter.Graph, ref string) (matter.Handle, error) {
	h, err := matter.ParseHandle(ref)
	if err != nil {
		return matter.Handle{}, badRequest(err.Error())
	}
	if !g.Exists(h) {
		return matter.Handle{}, notFound("instance " + ref + " not found")
	}
	return h, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// GET /worlds
func (s *Server) handleListWorlds(w http.ResponseWriter, _ *http.Request) {
	ids := s.manager.ListWorlds()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"worlds": out})
}

// PUT /worlds/{world}/catalog
// Body: CatalogConfig JSON. Creates the world or replaces its catalog.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	id := matter.WorldID(r.PathValue("world"))
	var cfg matter.CatalogConfig
	if err := decode(r, &cfg); err != nil {
		s.fail(w, err)
		return
	}
	src, err := matter.NewCatalogSource(cfg)
	if err != nil {
		http.Error(w, "invalid catalog: "+err.Error(), http.StatusBadRequest)
		return
	}
	created, err := s.LoadWorld(id, src)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if created {
		s.logger.Infof("World created: world_id=%s catalog=%s", id, cfg.Name)
		w.WriteHeader(http.StatusCreated)
	} else {
		s.logger.Infof("World catalog updated: world_id=%s catalog=%s", id, cfg.Name)
		w.WriteHeader(http.StatusOK)
	}
	_, _ = w.Write([]byte("catalog loaded"))
}

// DELETE /worlds/{world}
func (s *Server) handleDeleteWorld(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.DeleteWorld(matter.WorldID(r.PathValue("world"))); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("world deleted"))
}

// GET /worlds/{world}/instances
func (s *Server) handleListInstances(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var snap matter.Snapshot
	_ = ws.Do(func(g *matter.Graph) error {
		snap = g.Snapshot(ws.ID, ws.Members())
		return nil
	})
	writeJSON(w, http.StatusOK, snap)
}

// POST /worlds/{world}/instances
func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var req client.CreateInstanceRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.Quantity != nil && *req.Quantity <= 0 {
		http.Error(w, "quantity must be positive", http.StatusBadRequest)
		return
	}

	var node matter.Node
	err := ws.Do(func(g *matter.Graph) error {
		h, err := s.instantiate(g, req)
		if err != nil {
			return err
		}
		if req.Parent != "" {
			parent, err := live(g, req.Parent)
			if err != nil {
				g.Destroy(h)
				return err
			}
			merged, rel := g.AddChild(parent, h)
			if rel == matter.RelationFail {
				g.Destroy(h)
				return badRequest("instance cannot be added to " + req.Parent)
			}
			h = merged
		} else {
			g.AttachWorld(h)
		}
		node, _ = g.Describe(h)
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	s.logger.Debugf("Instance created: world_id=%s ref=%s type=%s", ws.ID, node.Ref, node.Type)
	writeJSON(w, http.StatusCreated, node)
}

func (s *Server) instantiate(g *matter.Graph, req client.CreateInstanceRequest) (matter.Handle, error) {
	var h matter.Handle
	if req.Type == "" {
		kind, ok := matter.ParseKind(req.Kind)
		if !ok || !kind.IsContainer() {
			return h, badRequest("either type or a container kind (object, space) is required")
		}
		h, _ = g.NewContainer(kind)
	} else {
		var err error
		if h, err = g.CreateByID(matter.TypeID(req.Type)); err != nil {
			return h, badRequest(err.Error())
		}
	}
	if req.Quantity != nil {
		g.SetQuantity(h, *req.Quantity)
	}
	if req.State != "" {
		st, ok := matter.ParseState(req.State)
		if !ok {
			g.Destroy(h)
			return matter.Handle{}, badRequest("invalid state " + req.State)
		}
		g.Apply(h, &matter.Change{State: &st}, nil)
	}
	if req.Position != nil {
		g.SetPosition(h, *req.Position)
	}
	return h, nil
}

// GET /worlds/{world}/instances/{ref}
func (s *Server) handleGetInstance(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var node matter.Node
	err := ws.Do(func(g *matter.Graph) error {
		h, err := live(g, r.PathValue("ref"))
		if err != nil {
			return err
		}
		node, _ = g.Describe(h)
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, node)
}

// DELETE /worlds/{world}/instances/{ref}
func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	err := ws.Do(func(g *matter.Graph) error {
		h, err := live(g, r.PathValue("ref"))
		if err != nil {
			return err
		}
		g.Destroy(h)
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("instance deleted"))
}

// POST /worlds/{world}/instances/{ref}/children
func (s *Server) handleAddChild(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var req client.AddChildRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	var resp client.RelationResponse
	err := ws.Do(func(g *matter.Graph) error {
		parent, err := live(g, r.PathValue("ref"))
		if err != nil {
			return err
		}
		child, err := live(g, req.Child)
		if err != nil {
			return err
		}
		h, rel := g.AddChild(parent, child)
		resp = client.RelationResponse{Relation: rel.String()}
		if !h.IsZero() {
			resp.Ref = h.String()
		}
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if resp.Relation == matter.RelationFail.String() {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

// DELETE /worlds/{world}/instances/{ref}/children/{child}
func (s *Server) handleRemoveChild(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var resp client.RelationResponse
	err := ws.Do(func(g *matter.Graph) error {
		parent, err := live(g, r.PathValue("ref"))
		if err != nil {
			return err
		}
		child, err := live(g, r.PathValue("child"))
		if err != nil {
			return err
		}
		rel := g.RemoveChild(parent, child)
		resp = client.RelationResponse{Relation: rel.String()}
		if rel == matter.RelationSuccess {
			// a detached child leaves the world with its owner; keep it reachable
			g.AttachWorld(child)
			resp.Ref = child.String()
		}
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	status := http.StatusOK
	if resp.Relation == matter.RelationFail.String() {
		status = http.StatusConflict
	}
	writeJSON(w, status, resp)
}

// POST /worlds/{world}/apply
func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var req client.ApplyRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	var resp client.ApplyResponse
	err := ws.Do(func(g *matter.Graph) error {
		h, err := live(g, req.Target)
		if err != nil {
			return err
		}
		var change *matter.Change
		switch {
		case req.Change != "":
			change, err = g.Registry().Change(matter.TypeID(req.Change))
		case req.Inline != nil:
			change, err = g.Registry().BuildChange(*req.Inline)
		default:
			return badRequest("change or inline is required")
		}
		if err != nil {
			return badRequest(err.Error())
		}
		resp.Applied = g.Apply(h, change, matter.Bindings(req.Vars))
		if node, ok := g.Describe(h); ok {
			resp.Node = &node
		}
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /worlds/{world}/satisfies
func (s *Server) handleSatisfies(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var req client.SatisfiesRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	var resp client.SatisfiesResponse
	err := ws.Do(func(g *matter.Graph) error {
		h, err := live(g, req.Target)
		if err != nil {
			return err
		}
		var cond *matter.Condition
		switch {
		case req.Condition != "":
			cond, err = g.Registry().Condition(matter.TypeID(req.Condition))
		case req.Inline != nil:
			cond, err = g.Registry().BuildCondition(*req.Inline)
		default:
			return badRequest("condition or inline is required")
		}
		if err != nil {
			return badRequest(err.Error())
		}
		resp.Satisfied = g.Satisfies(h, cond, matter.Bindings(req.Vars))
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /worlds/{world}/synthesize
func (s *Server) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.world(w, r)
	if !ok {
		return
	}
	var req client.SynthesizeRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	var resp client.SynthesizeResponse
	err := ws.Do(func(g *matter.Graph) error {
		pool := make([]matter.Handle, 0, len(req.Pool))
		for _, ref := range req.Pool {
			h, err := live(g, ref)
			if err != nil {
				return err
			}
			pool = append(pool, h)
		}
		var parent matter.Handle
		if req.Parent != "" {
			var err error
			if parent, err = live(g, req.Parent); err != nil {
				return err
			}
		}

		h, err := g.Synthesize(pool)
		if errors.Is(err, matter.ErrSynthesisFail) {
			s.logger.Debugf("Synthesis produced nothing: world_id=%s reason=%v", ws.ID, err)
			return nil
		}
		if err != nil {
			return err
		}
		if !parent.IsZero() && g.Exists(parent) {
			if merged, rel := g.AddChild(parent, h); rel != matter.RelationFail {
				h = merged
			} else {
				g.AttachWorld(h)
			}
		} else {
			g.AttachWorld(h)
		}
		resp.Created = true
		if node, ok := g.Describe(h); ok {
			resp.Node = &node
		}
		return nil
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /notifiers
func (s *Server) handleListNotifiers(w http.ResponseWriter, _ *http.Request) {
	ids := s.notifications.ListNotifiers()
	list := make([]client.NotifierInfo, 0, len(ids))
	for _, id := range ids {
		if n, ok := s.notifications.GetNotifier(id); ok {
			list = append(list, client.NotifierInfo{ID: id, Type: n.Type()})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"notifiers": list})
}

// POST /notifiers
// Body: { "type": "webhook", "id": "my-webhook", "config": { "url": "http://...", "events": ["added"] } }
func (s *Server) handleRegisterNotifier(w http.ResponseWriter, r *http.Request) {
	var req client.RegisterNotifierRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, err)
		return
	}
	if req.ID == "" {
		http.Error(w, "notifier ID is required", http.StatusBadRequest)
		return
	}

	var notifier matter.Notifier
	switch req.Type {
	case "webhook":
		url, ok := req.Config["url"].(string)
		if !ok || url == "" {
			http.Error(w, "webhook URL is required", http.StatusBadRequest)
			return
		}
		var types []matter.EventType
		if events, ok := req.Config["events"].([]any); ok {
			for _, e := range events {
				if name, ok := e.(string); ok {
					types = append(types, matter.EventType(name))
				}
			}
		}
		wh := notifiers.NewWebhookNotifier(req.ID, url, types...)
		if headers, ok := req.Config["headers"].(map[string]any); ok {
			for k, v := range headers {
				if vs, ok := v.(string); ok {
					wh.SetHeader(k, vs)
				}
			}
		}
		notifier = wh
	default:
		http.Error(w, "unknown notifier type: "+req.Type, http.StatusBadRequest)
		return
	}

	if err := s.notifications.RegisterNotifier(notifier); err != nil {
		http.Error(w, "cannot register notifier: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Infof("Notifier registered: id=%s type=%s", req.ID, req.Type)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier registered"))
}

// DELETE /notifiers/{id}
func (s *Server) handleUnregisterNotifier(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == websocketNotifierID {
		http.Error(w, "the websocket stream cannot be removed", http.StatusBadRequest)
		return
	}
	if err := s.notifications.UnregisterNotifier(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("notifier unregistered"))
}
