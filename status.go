package rtmp

// Command names carried as the first value of an invoke.
const (
	CommandConnect      = "connect"
	CommandCreateStream = "createStream"
	CommandPlay         = "play"
	CommandPublish      = "publish"
	CommandSeek         = "seek"
	CommandDeleteStream = "deleteStream"

	RespResult = "_result"
	RespError  = "_error"
	OnStatus   = "onStatus"
	OnBWDone   = "onBWDone"
)

// Status codes carried in the "code" property of _result and onStatus objects.
const (
	CodeConnectSuccess    = "NetConnection.Connect.Success"
	CodeConnectRejected   = "NetConnection.Connect.Rejected"
	CodeConnectInvalidApp = "NetConnection.Connect.InvalidApp"
	CodePlayReset         = "NetStream.Play.Reset"
	CodePlayStart         = "NetStream.Play.Start"
	CodePlayStop          = "NetStream.Play.Stop"
	CodePlayNotFound      = "NetStream.Play.StreamNotFound"
	CodePublishStart      = "NetStream.Publish.Start"
	CodePublishBadName    = "NetStream.Publish.BadName"
)

const (
	LevelStatus  = "status"
	LevelWarning = "warning"
	LevelError   = "error"
)

const PublishLive = "live"

// Transaction numbers of the calls we issue.
const (
	transactionConnect      = 1.0
	transactionOnBWDone     = 2.0
	transactionCreateStream = 3.0
	transactionStream       = 0.0
)
