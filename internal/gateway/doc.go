// Package gateway はAPIゲートウェイサービスを提供する。
// メールアドレスとパスワードによるユーザー登録・ログイン、JWT発行、
// 各バックエンドサービスへのプロキシを担当する。
// 内部サービス向けにはユーザー表示名の解決エンドポイントを提供する。
package gateway
