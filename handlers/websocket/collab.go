package websocket

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/ayukmr/lixel-server/core"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

const roomPrefix = "canvas:"

type ackInvoker func(err error, payload map[string]any)

var (
	activeRooms = make(map[string]int)
	roomsMutex  sync.RWMutex
)

// GetActiveRooms returns a snapshot of viewer counts keyed by canvas id.
func GetActiveRooms() map[string]int {
	roomsMutex.RLock()
	defer roomsMutex.RUnlock()

	rooms := make(map[string]int, len(activeRooms))
	for k, v := range activeRooms {
		rooms[k] = v
	}
	return rooms
}

func setRoomCount(canvasID string, count int) {
	roomsMutex.Lock()
	defer roomsMutex.Unlock()

	if count <= 0 {
		delete(activeRooms, canvasID)
		return
	}
	activeRooms[canvasID] = count
}

func roomFor(id uint32) socketio.Room {
	return socketio.Room(roomPrefix + strconv.FormatUint(uint64(id), 10))
}

// canvasIDFromRoom reports the canvas id of a room name, or false for rooms that are not
// canvas rooms, such as each socket's own room.
func canvasIDFromRoom(room socketio.Room) (string, bool) {
	name := string(room)
	if !strings.HasPrefix(name, roomPrefix) {
		return "", false
	}
	return strings.TrimPrefix(name, roomPrefix), true
}

// parseCanvasID accepts a canvas id sent as a JSON number or a decimal string.
func parseCanvasID(value any) (uint32, error) {
	switch v := value.(type) {
	case string:
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid canvas id %q", v)
		}
		return uint32(id), nil
	case float64:
		if v < 0 || v > math.MaxUint32 || v != math.Trunc(v) {
			return 0, fmt.Errorf("invalid canvas id %v", v)
		}
		return uint32(v), nil
	case int:
		if v < 0 || uint64(v) > math.MaxUint32 {
			return 0, fmt.Errorf("invalid canvas id %d", v)
		}
		return uint32(v), nil
	case uint32:
		return v, nil
	default:
		return 0, fmt.Errorf("canvas id is required")
	}
}

// Notifier pushes committed canvas changes to the sockets viewing that canvas.
type Notifier struct {
	emitTo func(room socketio.Room, event string, args ...any) error
}

func NewNotifier(srv *socketio.Server) *Notifier {
	return &Notifier{emitTo: func(room socketio.Room, event string, args ...any) error {
		return srv.To(room).Emit(event, args...)
	}}
}

func (n *Notifier) CanvasPatched(id uint32, pixels []core.Pixel) {
	if pixels == nil {
		pixels = []core.Pixel{}
	}
	n.emit(id, "canvas-patched", map[string]any{"id": id, "pixels": pixels})
}

func (n *Notifier) CanvasDeleted(id uint32) {
	n.emit(id, "canvas-deleted", map[string]any{"id": id})
}

func (n *Notifier) emit(id uint32, event string, payload map[string]any) {
	if err := n.emitTo(roomFor(id), event, payload); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"canvas_id": id,
			"event":     event,
		}).Warn("Failed to notify canvas room")
	}
}

func SetupSocketIO() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(1000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)
	opts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})
	srv := socketio.NewServer(nil, opts)

	//nolint:errcheck // Socket.IO event handlers do not return useful errors
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := socket.Id()
		logrus.WithField("socket_id", me).Debug("Socket connected")

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("join-canvas", func(datas ...any) {
			ack, args := extractAck(datas)
			id, err := firstCanvasID(args)
			if err != nil {
				respondWithAck(ack, err, nil)
				return
			}

			room := roomFor(id)
			socket.Join(room)
			logrus.WithFields(logrus.Fields{
				"socket_id": me,
				"canvas_id": id,
			}).Debug("Socket joined canvas room")

			refreshRoomCount(srv, room, "")
			respondWithAck(ack, nil, map[string]any{"status": "ok", "canvas_id": id})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("leave-canvas", func(datas ...any) {
			ack, args := extractAck(datas)
			id, err := firstCanvasID(args)
			if err != nil {
				respondWithAck(ack, err, nil)
				return
			}

			room := roomFor(id)
			socket.Leave(room)
			logrus.WithFields(logrus.Fields{
				"socket_id": me,
				"canvas_id": id,
			}).Debug("Socket left canvas room")

			refreshRoomCount(srv, room, "")
			respondWithAck(ack, nil, map[string]any{"status": "ok", "canvas_id": id})
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("disconnecting", func(datas ...any) {
			for _, currentRoom := range socket.Rooms().Keys() {
				refreshRoomCount(srv, currentRoom, me)
			}
		})

		//nolint:errcheck // Socket.IO event handlers do not return useful errors
		socket.On("disconnect", func(datas ...any) {
			socket.RemoveAllListeners("")
		})
	})

	return srv
}

// refreshRoomCount recounts the sockets in a canvas room, leaving out the one that is
// disconnecting, if any.
func refreshRoomCount(srv *socketio.Server, room socketio.Room, leaving socketio.SocketId) {
	canvasID, ok := canvasIDFromRoom(room)
	if !ok {
		return
	}

	srv.In(room).FetchSockets()(func(users []*socketio.RemoteSocket, err error) {
		if err != nil {
			logrus.WithError(err).WithField("canvas_id", canvasID).Warn("Failed to count canvas viewers")
			return
		}

		count := 0
		for _, user := range users {
			if user.Id() != leaving {
				count++
			}
		}
		setRoomCount(canvasID, count)
	})
}

func firstCanvasID(args []any) (uint32, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("canvas id is required")
	}
	return parseCanvasID(args[0])
}

func respondWithAck(ack ackInvoker, err error, payload map[string]any) {
	if ack == nil {
		return
	}
	if err != nil {
		payload = map[string]any{"status": "error", "error": err.Error()}
	}
	ack(err, payload)
}

// extractAck splits a trailing acknowledgement callback off an event's arguments.
func extractAck(datas []any) (ackInvoker, []any) {
	if len(datas) == 0 {
		return nil, datas
	}

	ack := wrapAck(datas[len(datas)-1])
	if ack == nil {
		return nil, datas
	}
	return ack, datas[:len(datas)-1]
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// wrapAck adapts whatever function type the client library hands us. Error parameters
// receive the error and the first other parameter receives the payload.
func wrapAck(candidate any) ackInvoker {
	if candidate == nil {
		return nil
	}

	value := reflect.ValueOf(candidate)
	if value.Kind() != reflect.Func {
		return nil
	}

	typ := value.Type()
	return func(err error, payload map[string]any) {
		args := make([]reflect.Value, typ.NumIn())
		payloadUsed := false
		for i := range args {
			paramType := typ.In(i)
			var arg any
			switch {
			case paramType == errorType:
				arg = err
			case !payloadUsed:
				arg = payload
				payloadUsed = true
			}
			args[i] = coerceValue(arg, paramType)
		}

		if typ.IsVariadic() {
			value.CallSlice(args)
			return
		}
		value.Call(args)
	}
}

func coerceValue(value any, targetType reflect.Type) reflect.Value {
	if value == nil {
		return reflect.Zero(targetType)
	}

	rv := reflect.ValueOf(value)
	switch {
	case rv.Type().AssignableTo(targetType):
		return rv
	case rv.Type().ConvertibleTo(targetType):
		return rv.Convert(targetType)
	case targetType.Kind() == reflect.Slice && targetType.Elem().Kind() == reflect.Interface:
		// func([]any, error) and func(...any) callbacks take the payload as one element.
		return reflect.ValueOf([]any{value}).Convert(targetType)
	case targetType.Kind() == reflect.String:
		return reflect.ValueOf(fmt.Sprint(value)).Convert(targetType)
	default:
		return reflect.Zero(targetType)
	}
}
