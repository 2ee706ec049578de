// Package task はタスクサービスの内部実装を提供する。
//
// タスクのCRUDを提供し、変更が確定するたびに通知のファンアウト
// （internal/fanout）を同期的に実行する。あわせてTaskCreated /
// TaskUpdated / TaskDeletedイベントをEvent Storeにベストエフォートで
// 追記する。イベント追記の失敗はタスク操作の成否に影響しない。
package task
