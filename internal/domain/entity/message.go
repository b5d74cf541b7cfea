package entity

type MessageKind string

const (
	MessageKindText        MessageKind = "text"
	MessageKindAudio       MessageKind = "audio"
	MessageKindImage       MessageKind = "image"
	MessageKindLocation    MessageKind = "location"
	MessageKindUnsupported MessageKind = "unsupported"
)

// InboundMessage представляет входящее сообщение, уже очищенное от деталей канала.
// Какие поля заполнены, зависит от Kind: Text для текста, Media и MediaType для
// аудио и фото, Latitude и Longitude для геопозиции.
type InboundMessage struct {
	Kind        MessageKind
	PhoneNumber string
	Text        string
	Media       []byte
	MediaType   string
	Latitude    float64
	Longitude   float64
}

func NewTextMessage(phone, text string) InboundMessage {
	return InboundMessage{Kind: MessageKindText, PhoneNumber: phone, Text: text}
}

func NewAudioMessage(phone string, data []byte, mediaType string) InboundMessage {
	return InboundMessage{Kind: MessageKindAudio, PhoneNumber: phone, Media: data, MediaType: mediaType}
}

func NewImageMessage(phone string, data []byte, mediaType string) InboundMessage {
	return InboundMessage{Kind: MessageKindImage, PhoneNumber: phone, Media: data, MediaType: mediaType}
}

func NewLocationMessage(phone string, lat, lng float64) InboundMessage {
	return InboundMessage{Kind: MessageKindLocation, PhoneNumber: phone, Latitude: lat, Longitude: lng}
}

func NewUnsupportedMessage(phone string) InboundMessage {
	return InboundMessage{Kind: MessageKindUnsupported, PhoneNumber: phone}
}
