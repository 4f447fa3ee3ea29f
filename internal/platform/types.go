package platform

// FollowListResponse is one page of the following-list endpoint.
type FollowListResponse struct {
	HasMore bool           `json:"has_more"`
	Total   int            `json:"total"`
	Items   []FollowedUser `json:"items"`
}

// FollowedUser is one broadcaster entry in a follow-list page.
type FollowedUser struct {
	SecUID         string `json:"sec_uid"`
	UID            string `json:"uid"`
	Nickname       string `json:"nickname"`
	Avatar         string `json:"avatar_url"`
	FollowerCount  int64  `json:"follower_count"`
	LiveStatus     int    `json:"live_status"`
	RoomID         string `json:"room_id"`
	WebRID         string `json:"web_rid"`
	Cover          string `json:"cover_url"`
}

// RoomDetail is the normalized response of the room-detail endpoint,
// extracted from whichever of data.data[0] or data the platform used for a
// given request shape.
type RoomDetail struct {
	RoomID        string `json:"room_id"`
	WebRID        string `json:"web_rid"`
	SecUID        string `json:"sec_uid"`
	OwnerUID      string `json:"owner_uid"`
	Nickname      string `json:"nickname"`
	Avatar        string `json:"avatar_url"`
	Cover         string `json:"cover_url"`
	Signature     string `json:"signature"`
	LiveStatus    int    `json:"live_status"`
	FollowerCount int64  `json:"follower_count"`
}

// businessErrorEnvelope is the shape of a platform business-level error
// response: HTTP 200 with a non-zero status_code and a message.
type businessErrorEnvelope struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// rawRoomDetailResponse mirrors the endpoint's documented but inconsistent
// envelope: the room fields arrive either at data.data[0] or directly at
// data, depending on request shape. Both are captured raw here and picked
// apart in extractRoomDetail rather than relying on promoted-field
// ambiguity.
type rawRoomDetailResponse struct {
	businessErrorEnvelope
	Data struct {
		Nested []RoomDetail `json:"data"`
		RoomDetail
	} `json:"data"`
}
