package fanout

// Resolve はイベントと変更分類から通知先ユーザーIDの集合を決定する。
// 集合のセマンティクス: 重複は除去され、1イベントにつき1宛先1通知となる。
// 返り値の順序は規則の定義順で安定している。
//
// 規則:
//   - 作成: 担当者。作成者が担当者と異なる場合は作成者も含める（委任確認）。
//   - 更新（状態変更・その他）: 新担当者。
//   - 更新（担当者変更）: 旧担当者と新担当者の両方。
//   - 状態変更と担当者変更が同時に起きた場合、文面は状態変更に従うが、
//     旧担当者は通知先に含め続ける。
//   - 削除: 作成者と担当者の和集合。
//
// 変更を行った本人（アクター）も除外しない。宛先に該当する限り通知を受け取る。
func Resolve(ev Event, change Change, prev, next *Task) []string {
	var uids []string
	switch ev {
	case EventCreated:
		uids = append(uids, next.AssignedTo)
		if next.CreatedBy != next.AssignedTo {
			uids = append(uids, next.CreatedBy)
		}
	case EventUpdated:
		uids = append(uids, next.AssignedTo)
		if change.Reassigned {
			uids = append(uids, prev.AssignedTo)
		}
	case EventDeleted:
		uids = append(uids, prev.CreatedBy, prev.AssignedTo)
	}
	return dedupeUIDs(uids)
}

// dedupeUIDs は順序を保ったままユーザーIDの重複と空文字列を取り除く。
func dedupeUIDs(uids []string) []string {
	seen := make(map[string]struct{}, len(uids))
	result := make([]string, 0, len(uids))
	for _, uid := range uids {
		if uid == "" {
			continue
		}
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		result = append(result, uid)
	}
	return result
}
