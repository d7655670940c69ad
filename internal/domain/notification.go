package domain

// NoticeKind classifies the connectivity and feed notices the layer emits
// alongside order updates.
type NoticeKind int

const (
	NoticeOrderUpdate NoticeKind = iota
	NoticeDisconnected
	NoticeConnected
	NoticeLive
	NoticeEndOfStream
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeOrderUpdate:
		return "ORDER_UPDATE"
	case NoticeDisconnected:
		return "DISCONNECTED"
	case NoticeConnected:
		return "CONNECTED"
	case NoticeLive:
		return "LIVE"
	case NoticeEndOfStream:
		return "END_OF_STREAM"
	default:
		return "UNKNOWN"
	}
}

// Notification is one entry in the FIFO notification queue. Order is non-nil
// only for NoticeOrderUpdate. Informational entries may be dropped by the
// queue unless it is configured to emit everything.
type Notification struct {
	Kind          NoticeKind
	Order         *Order
	Msg           string
	Informational bool
}
