// Package eventstore はイベントストアサービスの内部実装を提供する。
//
// すべてのサービスの状態変更をイベントとして永続化する監査ログの中核。
// イベントは不変（immutable）であり、追記のみ（append-only）で運用される。
//
// 主な機能:
//   - イベントの追記（Append）
//   - AggregateIDによるイベント取得（履歴参照用）
//   - イベントタイプによるイベント取得
//   - 日時指定によるイベント取得（Read Model増分更新用）
package eventstore
