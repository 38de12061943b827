package model

import "errors"

var ErrorSessionNotReady = errors.New("whatsapp session is not connected")
var ErrorDispatchInProgress = errors.New("a bulk dispatch is already in progress")
var ErrorSessionActive = errors.New("session must be disconnected before wiping credentials")
var ErrorNumberNotOnNetwork = errors.New("number is not registered on whatsapp")
