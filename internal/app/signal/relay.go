package signal

// handleRelay forwards an offer, answer or ICE candidate to the addressed connection. The
// blob is passed through untouched and the two peers need not share a room. Frames for a
// connection that is gone are dropped without telling the sender.
func (h *Hub) handleRelay(handle string, f Frame) {
	var req RelayRequest
	if err := decodeData(f, &req); err != nil {
		h.fail(handle, err)
		return
	}

	out := RelayPayload{From: handle}
	switch f.Event {
	case EventOffer:
		out.Offer = req.Offer
	case EventAnswer:
		out.Answer = req.Answer
	case EventIceCandidate:
		out.Candidate = req.Candidate
	}

	if req.To == "" || !h.store.Conns.Alive(req.To) {
		h.logger.Debug().Str("socket_id", handle).Str("to", req.To).Str("event", f.Event).Msg("Relay target gone, dropping.")
		return
	}

	h.emit(req.To, f.Event, out)
}
