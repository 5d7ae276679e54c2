package http

import (
	"errors"
	"net/http"

	"budget/internal/core"
	"budget/internal/log"
	"budget/internal/ports"
)

// withSession opens one storage session for the request and releases it on
// every path out of fn.
func (s *Server) withSession(w http.ResponseWriter, r *http.Request, op string, fn func(ports.ItemSession) (*JSONResponseBuilder, error)) {
	ctx := r.Context()

	sess, err := s.store.OpenSession(ctx)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Failed to close storage session",
				log.FieldOperation, op,
				log.FieldError, err)
		}
	}()

	resp, err := fn(sess)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	s.respond(w, r, resp)
}

// fail maps err onto the API's error responses.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if verrs, ok := core.AsValidationErrors(err); ok {
		s.respond(w, r, ValidationErrorResponse(verrs))
		return
	}
	switch {
	case errors.Is(err, core.ErrItemNotFound):
		s.respond(w, r, NotFoundError("Item not found"))
	case errors.Is(err, errBodyTooLarge):
		s.respond(w, r, RequestTooLargeError())
	default:
		s.items.LogError(r.Context(), "Item request failed", err, op, nil)
		s.respond(w, r, InternalServerError())
	}
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	in, err := ParseItemInput(w, r)
	if err != nil {
		s.fail(w, r, log.OpValidate, err)
		return
	}

	s.withSession(w, r, log.OpCreate, func(sess ports.ItemSession) (*JSONResponseBuilder, error) {
		item, err := sess.Insert(r.Context(), in)
		if err != nil {
			return nil, err
		}
		s.items.LogItemCreated(r.Context(), item.ID, item.Category, item.Amount, item.Currency, item.Type.String())
		return ItemResponse(item), nil
	})
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := parsePaging(r, s.listDefaultLimit)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}

	s.withSession(w, r, log.OpList, func(sess ports.ItemSession) (*JSONResponseBuilder, error) {
		items, err := sess.List(r.Context(), skip, limit)
		if err != nil {
			return nil, err
		}
		return ItemListResponse(items), nil
	})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}

	s.withSession(w, r, log.OpRead, func(sess ports.ItemSession) (*JSONResponseBuilder, error) {
		item, err := sess.Get(r.Context(), id)
		if err != nil {
			return nil, err
		}
		return ItemResponse(item), nil
	})
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseItemID(r)
	if err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}

	s.withSession(w, r, log.OpDelete, func(sess ports.ItemSession) (*JSONResponseBuilder, error) {
		if err := sess.Delete(r.Context(), id); err != nil {
			return nil, err
		}
		s.items.LogItemDeleted(r.Context(), id)
		return DetailResponse(http.StatusOK, "Item deleted"), nil
	})
}
