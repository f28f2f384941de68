package ws

import "time"

// roomIndex 房间 -> 成员集合，空房间立即删除
type roomIndex map[string]map[string]struct{}

// add 加入成员，已是成员返回 false
func (ri roomIndex) add(roomID, userID string) bool {
	members, ok := ri[roomID]
	if !ok {
		members = make(map[string]struct{})
		ri[roomID] = members
	}
	if _, exists := members[userID]; exists {
		return false
	}
	members[userID] = struct{}{}
	return true
}

// remove 移除成员，返回剩余人数
func (ri roomIndex) remove(roomID, userID string) int {
	members, ok := ri[roomID]
	if !ok {
		return 0
	}
	delete(members, userID)
	if len(members) == 0 {
		delete(ri, roomID)
		return 0
	}
	return len(members)
}

func (ri roomIndex) has(roomID, userID string) bool {
	_, ok := ri[roomID][userID]
	return ok
}

func (ri roomIndex) count(roomID string) int {
	return len(ri[roomID])
}

// members 成员快照（有序）
func (ri roomIndex) members(roomID string) []string {
	members, ok := ri[roomID]
	if !ok {
		return nil
	}
	return sortedKeys(members)
}

// typingIndex 房间 -> 用户 -> 开始输入时间，空房间立即删除
type typingIndex map[string]map[string]time.Time

func (ti typingIndex) set(roomID, userID string, at time.Time) {
	users, ok := ti[roomID]
	if !ok {
		users = make(map[string]time.Time)
		ti[roomID] = users
	}
	users[userID] = at
}

// clear 删除条目，条目不存在返回 false
func (ti typingIndex) clear(roomID, userID string) bool {
	users, ok := ti[roomID]
	if !ok {
		return false
	}
	if _, exists := users[userID]; !exists {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(ti, roomID)
	}
	return true
}

// roomsOf 用户正在输入的房间
func (ti typingIndex) roomsOf(userID string) []string {
	var rooms []string
	for roomID, users := range ti {
		if _, ok := users[userID]; ok {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

// typingEntry 过期条目
type typingEntry struct {
	roomID string
	userID string
}

// expired 早于 deadline 的条目
func (ti typingIndex) expired(deadline time.Time) []typingEntry {
	var entries []typingEntry
	for roomID, users := range ti {
		for userID, at := range users {
			if at.Before(deadline) {
				entries = append(entries, typingEntry{roomID: roomID, userID: userID})
			}
		}
	}
	return entries
}
