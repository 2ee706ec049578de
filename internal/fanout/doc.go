// Package fanout はタスク変更通知のファンアウトエンジンを提供する。
//
// タスクの作成・更新・削除の各イベントについて、変更内容の分類（Diff）、
// 通知文面の組み立て（Compose）、通知先の決定（Resolve）、および
// 宛先ごとの通知レコード永続化（Dispatch）を行う。
// 外部コラボレーター（ユーザーディレクトリ・通知ストア・顧客/商談参照）は
// インターフェースとして注入される。HTTPやDBへの直接依存は持たない。
package fanout
