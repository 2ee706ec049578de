// Package notification は通知サービスの内部実装を提供する。
//
// タスクサービスからの内部APIで通知レコードを受け取り保存する。
// ユーザー向けには通知の一覧取得、未読一覧、既読管理のAPIを提供する。
// 重複排除のため、タスクIDとメッセージ本文による検索APIも公開する。
package notification
