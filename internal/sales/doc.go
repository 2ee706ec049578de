// Package sales は商談管理サービスを提供する。
// 商談のCRUDとステージ遷移の管理を担当し、
// タスクサービス向けに商談名の解決エンドポイントを公開する。
package sales
