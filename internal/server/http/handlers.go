package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/expense-keeper/internal/client"
	"github.com/and161185/expense-keeper/internal/convert"
	"github.com/and161185/expense-keeper/internal/errs"
	"github.com/and161185/expense-keeper/internal/exchange"
	"github.com/and161185/expense-keeper/internal/protocol"
)

const writeWait = 10 * time.Second

// export handles GET /v1/expenses/{id}/export.
func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	c, err := h.caller(r)
	if err != nil {
		h.writeError(w, "export", err)
		return
	}
	id := mux.Vars(r)["id"]
	e, err := h.expenses.Get(r.Context(), c, id)
	if err != nil {
		h.writeError(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".json"))
	if err := exchange.Encode(w, exchange.Export(e, h.now())); err != nil {
		h.log.Warn("export write", zap.String("doc_id", id), zap.Error(err))
	}
}

// importFile handles POST /v1/expenses/{id}/import. The file replaces the
// document's title, headers and rows through the mutation protocol, so the
// caller needs edit rights.
func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	c, err := h.caller(r)
	if err != nil {
		h.writeError(w, "import", err)
		return
	}
	if !c.Authenticated() {
		h.writeError(w, "import", errs.ErrUnauthenticated)
		return
	}
	f, err := exchange.Decode(http.MaxBytesReader(w, r.Body, exchange.MaxFileSize+1))
	if err != nil {
		h.writeError(w, "import", err)
		return
	}

	pc, err := protocol.New(client.NewLocal(h.expenses, c), c, protocol.WithLogger(h.log))
	if err != nil {
		h.writeError(w, "import", err)
		return
	}
	cur := pc.GetDocument(r.Context(), mux.Vars(r)["id"])
	if !cur.Success {
		h.writeError(w, "import", cur.Unwrap())
		return
	}
	res := exchange.Import(r.Context(), pc, cur.Data, f)
	if !res.Success {
		h.writeError(w, "import", res.Unwrap())
		return
	}
	writeJSON(w, http.StatusOK, convert.ToWireExpense(res.Data))
}

// watch handles GET /v1/expenses/{id}/watch. Access is checked before the
// upgrade; afterwards every snapshot is one JSON text message. A deletion
// closes the socket normally, lost access with a policy violation.
func (h *Handler) watch(w http.ResponseWriter, r *http.Request) {
	c, err := h.caller(r)
	if err != nil {
		h.writeError(w, "watch", err)
		return
	}
	id := mux.Vars(r)["id"]

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	sub, err := h.expenses.Watch(ctx, c, id)
	if err != nil {
		h.writeError(w, "watch", err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade", zap.String("doc_id", id), zap.Error(err))
		return
	}
	defer conn.Close()

	// the read side only notices the peer going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for snap := range sub.C {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(convert.ToWireSnapshot(snap.Expense, snap.Exists)); err != nil {
			return
		}
	}

	code, reason := websocket.CloseNormalClosure, ""
	if sub.Err() != nil {
		code, reason = websocket.ClosePolicyViolation, "permission denied"
	}
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}
