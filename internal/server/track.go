package server

import (
	"bytes"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/mdobak/go-xerrors"

	"github.com/ayusman/lune/internal/calibration"
	"github.com/ayusman/lune/internal/handsize"
	"github.com/ayusman/lune/internal/log"
	"github.com/ayusman/lune/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // local connections
	},
}

// Track message types.
const (
	MsgFrame     = "frame"
	MsgCalibrate = "calibrate"
	MsgProfile   = "profile"
	MsgTarget    = "target"
	MsgReset     = "reset"

	MsgResult = "result"
	MsgAck    = "ack"
	MsgError  = "error"
)

// trackMessage is a client message on /api/track. An empty type is a frame.
type trackMessage struct {
	Type string `json:"type"`
	frameRequest
	Reference  *calibration.ReferenceScale `json:"reference,omitempty"`
	Gender     handsize.Gender             `json:"gender"`
	Size       handsize.Size               `json:"size"`
	DiameterMm float64                     `json:"diameter_mm"`
}

type trackReply struct {
	Type    string          `json:"type"`
	Control string          `json:"control,omitempty"`
	Result  *session.Result `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// TrackHandler runs one tracking session per websocket connection. Clients
// stream frames and receive a result for each.
type TrackHandler struct {
	opts session.Options
}

// NewTrackHandler returns a handler whose sessions start from opts.
func NewTrackHandler(opts session.Options) *TrackHandler {
	return &TrackHandler{opts: opts}
}

func (h *TrackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnw("websocket upgrade", "error", xerrors.New(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(MaxBodyBytes)

	sess := session.New(h.opts)
	binary := wantsMsgpack(r)
	log.Debugw("tracking session opened", "session", sess.ID, "remote", r.RemoteAddr)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debugw("tracking session read", "session", sess.ID, "error", err)
			}
			break
		}

		var msg trackMessage
		var reply trackReply
		if err := decode(bytes.NewReader(data), kind == websocket.BinaryMessage, &msg); err != nil {
			reply = trackReply{Type: MsgError, Error: err.Error()}
		} else {
			reply = handleTrackMessage(sess, msg)
		}

		if err := writeMessage(conn, binary, reply); err != nil {
			log.Debugw("tracking session write", "session", sess.ID, "error", err)
			break
		}
	}

	log.Debugw("tracking session closed", "session", sess.ID)
}

func handleTrackMessage(sess *session.Session, msg trackMessage) trackReply {
	switch msg.Type {
	case MsgFrame, "":
		frame, err := msg.frame()
		if err != nil {
			return trackReply{Type: MsgError, Error: err.Error()}
		}
		res := sess.Process(frame)
		return trackReply{Type: MsgResult, Result: &res}

	case MsgCalibrate:
		if msg.Reference == nil || !msg.Reference.Valid() {
			sess.ClearReference()
		} else {
			sess.SetReference(*msg.Reference)
		}
	case MsgProfile:
		sess.SetProfile(calibration.Profile{Gender: msg.Gender, Size: msg.Size})
	case MsgTarget:
		sess.SetTargetDiameter(msg.DiameterMm)
	case MsgReset:
		sess.Reset()
	default:
		return trackReply{Type: MsgError, Error: "unknown message type " + msg.Type}
	}
	return trackReply{Type: MsgAck, Control: msg.Type}
}

func writeMessage(conn *websocket.Conn, binary bool, v any) error {
	body, _, err := encode(v, binary)
	if err != nil {
		return err
	}
	kind := websocket.TextMessage
	if binary {
		kind = websocket.BinaryMessage
	}
	return conn.WriteMessage(kind, body)
}
